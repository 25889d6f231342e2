// Package main generates a development CA and a server certificate signed
// by it, for running the vault server with -tls-cert and -tls-key.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/easyvault/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma-separated server host names and IPs")
	flag.Parse()

	if err := run(*dir, splitHosts(*hosts)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Certificates generated into %s\n", *dir)
	fmt.Printf("  server: -tls-cert %s -tls-key %s\n",
		filepath.Join(*dir, "server.crt"), filepath.Join(*dir, "server.key"))
	fmt.Printf("  client: --ca-file %s\n", filepath.Join(*dir, "ca.crt"))
}

// run writes ca.{crt,key} and server.{crt,key} under dir.
func run(dir string, hosts []string) error {
	caPEM, caKeyPEM, err := certgen.GenerateCA("EasyVault Dev CA", 10*365*24*time.Hour)
	if err != nil {
		return err
	}
	if err := certgen.WritePair(dir, "ca", caPEM, caKeyPEM); err != nil {
		return err
	}

	caCert, caKey, err := certgen.ParseCACredentials(caPEM, caKeyPEM)
	if err != nil {
		return err
	}
	certPEM, keyPEM, err := certgen.GenerateServerCertificate(hosts, 365*24*time.Hour, caCert, caKey)
	if err != nil {
		return err
	}
	return certgen.WritePair(dir, "server", certPEM, keyPEM)
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
