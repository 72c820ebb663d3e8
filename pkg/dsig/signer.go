// Package dsig implements signing providers that fill prepared XML-DSig
// templates: a software store backed by certificate and key files and a
// PKCS#11 token.
package dsig

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/SUNET/go-esign/pkg/algorithm"
	"github.com/beevik/etree"
	"github.com/ddulesov/gogost/gost28147"
	"github.com/ddulesov/gogost/gost341194"
	"github.com/ddulesov/gogost/gost34112012256"
	"github.com/ddulesov/gogost/gost34112012512"
	xmldsig "github.com/russellhaering/goxmldsig"
	"github.com/russellhaering/goxmldsig/etreeutils"
)

// DigestSHA256 is the XML-DSig SHA-256 digest method, accepted for non-GOST
// keys held in the software store.
const DigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"

const envelopedSignature = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"

var (
	// ErrUnsupportedDigest is returned for a DigestMethod with no known hash.
	ErrUnsupportedDigest = errors.New("unsupported digest method")

	// ErrMalformedTemplate is returned when the template lacks an element
	// needed for signing.
	ErrMalformedTemplate = errors.New("malformed signature template")
)

var digests = map[string]func() hash.Hash{
	algorithm.DigestGostR34112012256: gost34112012256.New,
	algorithm.DigestGostR34112012512: gost34112012512.New,
	algorithm.DigestGostR341194: func() hash.Hash {
		return gost341194.New(&gost28147.SboxIdGostR341194CryptoProParamSet)
	},
	DigestSHA256: sha256.New,
}

// NewHash returns the hash implementing the given DigestMethod URI.
func NewHash(digestURI string) (hash.Hash, error) {
	newHash, ok := digests[digestURI]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDigest, digestURI)
	}
	return newHash(), nil
}

// Digest hashes data with the hash named by digestURI.
func Digest(digestURI string, data []byte) ([]byte, error) {
	h, err := NewHash(digestURI)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// DigestSigner signs a digest computed with the hash named by digestURI.
type DigestSigner interface {
	SignDigest(digest []byte, digestURI string) ([]byte, error)
}

// SignTemplate completes an unsigned XML-DSig template. The element named by
// the Reference URI is canonicalized with exclusive C14N and digested with
// the DigestMethod of the template, then SignedInfo is canonicalized, hashed
// with the same digest and signed by signer.
//
// Only DigestValue and SignatureValue are changed; the rest of the template
// is returned as it was given.
func SignTemplate(unsigned string, signer DigestSigner) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(unsigned); err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("%w: empty document", ErrMalformedTemplate)
	}

	signature := findNS(root, xmldsig.Namespace, xmldsig.SignatureTag)
	if signature == nil {
		return "", fmt.Errorf("%w: no Signature element", ErrMalformedTemplate)
	}
	signedInfo := findNS(signature, xmldsig.Namespace, xmldsig.SignedInfoTag)
	reference := findNS(signedInfo, xmldsig.Namespace, xmldsig.ReferenceTag)
	digestMethod := findNS(reference, xmldsig.Namespace, xmldsig.DigestMethodTag)
	digestValue := findNS(reference, xmldsig.Namespace, xmldsig.DigestValueTag)
	signatureValue := findNS(signature, xmldsig.Namespace, xmldsig.SignatureValueTag)
	if digestMethod == nil || digestValue == nil || signatureValue == nil {
		return "", fmt.Errorf("%w: incomplete SignedInfo", ErrMalformedTemplate)
	}

	digestURI := digestMethod.SelectAttrValue(xmldsig.AlgorithmAttr, "")
	if _, ok := digests[digestURI]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDigest, digestURI)
	}

	uri := reference.SelectAttrValue(xmldsig.URIAttr, "")
	target := findByID(root, strings.TrimPrefix(uri, "#"))
	if uri == "" || target == nil {
		return "", fmt.Errorf("%w: reference %q does not resolve", ErrMalformedTemplate, uri)
	}

	referenced, err := canonicalize(target, hasTransform(reference, envelopedSignature))
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize referenced element: %w", err)
	}
	refDigest, err := Digest(digestURI, referenced)
	if err != nil {
		return "", err
	}
	digestB64 := base64.StdEncoding.EncodeToString(refDigest)
	digestValue.SetText(digestB64)

	info, err := canonicalize(signedInfo, false)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize SignedInfo: %w", err)
	}
	infoDigest, err := Digest(digestURI, info)
	if err != nil {
		return "", err
	}
	rawSig, err := signer.SignDigest(infoDigest, digestURI)
	if err != nil {
		return "", err
	}
	sigB64 := base64.StdEncoding.EncodeToString(rawSig)

	const (
		emptyDigest    = "<DigestValue></DigestValue>"
		emptySignature = "<SignatureValue></SignatureValue>"
	)
	if strings.Count(unsigned, emptyDigest) == 1 && strings.Count(unsigned, emptySignature) == 1 {
		out := strings.Replace(unsigned, emptyDigest, "<DigestValue>"+digestB64+"</DigestValue>", 1)
		return strings.Replace(out, emptySignature, "<SignatureValue>"+sigB64+"</SignatureValue>", 1), nil
	}

	signatureValue.SetText(sigB64)
	return doc.WriteToString()
}

// canonicalize detaches el with the namespaces in scope at its position and
// returns its exclusive canonical form.
func canonicalize(el *etree.Element, enveloped bool) ([]byte, error) {
	nsCtx, err := etreeutils.NSBuildParentContext(el)
	if err != nil {
		return nil, err
	}
	detached, err := etreeutils.NSDetatch(nsCtx, el)
	if err != nil {
		return nil, err
	}
	if enveloped {
		if sig := findNS(detached, xmldsig.Namespace, xmldsig.SignatureTag); sig != nil && sig.Parent() != nil {
			sig.Parent().RemoveChild(sig)
		}
	}
	return xmldsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("").Canonicalize(detached)
}

func hasTransform(reference *etree.Element, alg string) bool {
	transforms := findNS(reference, xmldsig.Namespace, xmldsig.TransformsTag)
	if transforms == nil {
		return false
	}
	for _, t := range transforms.ChildElements() {
		if t.SelectAttrValue(xmldsig.AlgorithmAttr, "") == alg {
			return true
		}
	}
	return false
}

// findNS returns the first descendant of el (or el itself) with the given
// namespace and local name.
func findNS(el *etree.Element, ns, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == tag && el.NamespaceURI() == ns {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findNS(child, ns, tag); found != nil {
			return found
		}
	}
	return nil
}

// findByID returns the element carrying an Id attribute with the given
// value, whatever its namespace prefix.
func findByID(el *etree.Element, id string) *etree.Element {
	if id == "" {
		return nil
	}
	for _, attr := range el.Attr {
		if (attr.Key == "Id" || attr.Key == "ID" || attr.Key == "id") && attr.Value == id {
			return el
		}
	}
	for _, child := range el.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}
