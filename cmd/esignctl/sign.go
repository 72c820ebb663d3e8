package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/SUNET/go-esign/pkg/certificate"
	"github.com/SUNET/go-esign/pkg/delivery"
	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/orchestrator"
	"github.com/SUNET/go-esign/pkg/xmlconv"
	"github.com/spf13/cobra"
)

type signOptions struct {
	jsonFile   string
	root       string
	outDir     string
	thumbprint string
}

func newSignCmd(opts *globalOptions) *cobra.Command {
	so := &signOptions{}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Convert a JSON document to XML and sign it",
		Long: `Convert a JSON document to XML under the given root element, wrap it in a
WS-Security SOAP envelope and sign it. The signed envelope is written to
stdout, or to signed.xml in the --out directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd, opts, so)
		},
	}
	cmd.Flags().StringVar(&so.jsonFile, "json", "", "JSON document to sign")
	cmd.Flags().StringVar(&so.root, "root", "html", "Root element of the converted document")
	cmd.Flags().StringVar(&so.outDir, "out", "", "Directory receiving the signed document")
	cmd.Flags().StringVar(&so.thumbprint, "cert", "", "Thumbprint of the signing certificate (default: first valid)")
	_ = cmd.MarkFlagRequired("json")
	return cmd
}

func runSign(cmd *cobra.Command, opts *globalOptions, so *signOptions) error {
	data, err := os.ReadFile(so.jsonFile)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	body, err := xmlconv.ToXML(so.root, data)
	if err != nil {
		return err
	}

	svc, err := openService(cmd, opts)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	o := svc.Orchestrator
	certs := o.ListCertificates(ctx)
	switch {
	case so.thumbprint != "":
		if err := o.SelectCertificate(so.thumbprint); err != nil {
			return fmt.Errorf("certificate %s: %w", so.thumbprint, err)
		}
	case len(certs) > 0 && !certificate.IsPlaceholder(&certs[0]):
		if _, err := o.SelectDefault(); err != nil {
			return err
		}
	}

	outcome, err := o.SignSync(ctx, body)
	if err != nil {
		return err
	}
	svc.Logger.Info("Sign finished",
		logging.F("request_id", outcome.RequestID),
		logging.F("status", string(outcome.Status)),
		logging.F("duration", outcome.Duration.String()))

	if !outcome.OK() {
		if outcome.Diagnostic != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), outcome.Diagnostic)
		}
		return fmt.Errorf("%s: %s", outcome.Status, outcome.Payload)
	}

	if so.outDir == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), outcome.Payload)
		return err
	}
	sink := delivery.NewDirectory(so.outDir, svc.Logger)
	if err := sink.Deliver(ctx, orchestrator.SignedFileName, []byte(outcome.Payload)); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), filepath.Clean(sink.Last()))
	return nil
}
