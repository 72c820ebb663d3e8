// Package envelope builds the WS-Security SOAP envelope that is handed to a
// signing provider. The envelope is an XML-DSig template: DigestValue and
// SignatureValue are left empty and filled in by the provider.
package envelope

import "strings"

const (
	// TokenID is the wsu:Id of the BinarySecurityToken. KeyInfo refers to it.
	TokenID = "uuid-ee82d445-758b-42cb-996c-666b74b60022-2"
	// BodyID is the wsu:Id of the SOAP body.
	BodyID = "_1"
	// BodyReference is the SignedInfo Reference URI pointing at the body.
	BodyReference = "#" + BodyID
	// TokenReference is the SecurityTokenReference URI pointing at the token.
	TokenReference = "#" + TokenID
)

const (
	NamespaceSOAP    = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceWSU     = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	NamespaceWSSE    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NamespaceDSig    = "http://www.w3.org/2000/09/xmldsig#"
	ActorSMEV        = "http://smev.gosuslugi.ru/actors/smev"
	ValueTypeX509v3  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509v3"
	EncodingBase64   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"
	ExclusiveC14N    = "http://www.w3.org/2001/10/xml-exc-c14n#"
	NamespaceXSI     = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceXSD     = "http://www.w3.org/2001/XMLSchema"
	xmlDeclaration   = `<?xml version="1.0" encoding="UTF-8"?>`
	defaultIndentGap = "    "
)

// Build returns the unsigned envelope for body. The certificate, signature
// method and digest method are inserted verbatim; any of them may be empty,
// which is how the test mode payload is produced.
//
// The output is a pure function of its inputs.
func Build(body, base64Cert, signatureMethod, digestMethod string) string {
	var b strings.Builder
	b.Grow(len(body) + len(base64Cert) + 2048)

	gap := func(n int) {
		b.WriteString(strings.Repeat(defaultIndentGap, n))
	}

	b.WriteString(xmlDeclaration)
	b.WriteString(`<s:Envelope xmlns:s="` + NamespaceSOAP + `" xmlns:u="` + NamespaceWSU + `">`)
	gap(1)
	b.WriteString(`<s:Header>`)
	gap(2)
	b.WriteString(`<o:Security s:mustUnderstand="1" xmlns:o="` + NamespaceWSSE + `" s:actor="` + ActorSMEV + `">`)
	gap(3)
	b.WriteString(`<o:BinarySecurityToken u:Id="` + TokenID + `" ValueType="` + ValueTypeX509v3 + `" EncodingType="` + EncodingBase64 + `">`)
	b.WriteString(base64Cert)
	gap(3)
	b.WriteString(`</o:BinarySecurityToken>`)
	gap(3)
	b.WriteString(`<Signature xmlns="` + NamespaceDSig + `">`)
	gap(4)
	b.WriteString(`<SignedInfo>`)
	gap(5)
	b.WriteString(`<CanonicalizationMethod Algorithm="` + ExclusiveC14N + `" />`)
	gap(5)
	b.WriteString(`<SignatureMethod Algorithm="` + signatureMethod + `"/>`)
	gap(5)
	b.WriteString(`<Reference URI="` + BodyReference + `">`)
	gap(6)
	b.WriteString(`<Transforms>`)
	gap(7)
	b.WriteString(`<Transform Algorithm="` + ExclusiveC14N + `" />`)
	gap(6)
	b.WriteString(`</Transforms>`)
	gap(6)
	b.WriteString(`<DigestMethod Algorithm="` + digestMethod + `"/>`)
	gap(6)
	b.WriteString(`<DigestValue></DigestValue>`)
	gap(5)
	b.WriteString(`</Reference>`)
	gap(4)
	b.WriteString(`</SignedInfo>`)
	gap(4)
	b.WriteString(`<SignatureValue></SignatureValue>`)
	gap(4)
	b.WriteString(`<KeyInfo>`)
	gap(5)
	b.WriteString(`<o:SecurityTokenReference>`)
	gap(5)
	b.WriteString(`<o:Reference ValueType="` + ValueTypeX509v3 + `" URI="` + TokenReference + `" />`)
	gap(5)
	b.WriteString(`</o:SecurityTokenReference>`)
	gap(4)
	b.WriteString(`</KeyInfo>`)
	gap(3)
	b.WriteString(`</Signature>`)
	gap(2)
	b.WriteString(`</o:Security>`)
	gap(1)
	b.WriteString(`</s:Header>`)
	gap(1)
	b.WriteString(`<s:Body u:Id="` + BodyID + `" xmlns:xsi="` + NamespaceXSI + `" xmlns:xsd="` + NamespaceXSD + `">`)
	b.WriteString(body)
	gap(1)
	b.WriteString(`</s:Body>`)
	b.WriteString(`</s:Envelope>`)
	return b.String()
}
