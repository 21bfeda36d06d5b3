package pipeline

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/rotisserie/eris"

	"nfce/internal"
)

const macOSMetadataPrefix = "__MACOSX"

// Member is one document inside a container. Read is deferred so a member
// that cannot be decompressed fails on its own.
type Member struct {
	Name string
	Kind internal.DocumentKind
	Read func() ([]byte, error)
}

// Container enumerates the document members of a bundle file in stored order.
// Opening the bundle is the only error it returns.
type Container interface {
	Members(path string, fn func(Member)) error
}

func DocumentKindOf(name string) (internal.DocumentKind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return internal.KindPDF, true
	case ".html", ".htm":
		return internal.KindHTML, true
	}
	return "", false
}

func ContainerKindOf(name string) (internal.ContainerKind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip":
		return internal.ContainerZip, true
	case ".eml":
		return internal.ContainerMail, true
	}
	return "", false
}

func ContainerFor(kind internal.ContainerKind) (Container, error) {
	switch kind {
	case internal.ContainerZip:
		return ZipContainer{}, nil
	case internal.ContainerMail:
		return MailContainer{}, nil
	}
	return nil, eris.Errorf("pipeline: unknown container kind %q", kind)
}

// MemberLabel is the provenance string of a document found inside a container.
func MemberLabel(containerName, memberName string) string {
	return containerName + "::" + memberName
}

type ZipContainer struct{}

func (ZipContainer) Members(path string, fn func(Member)) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return eris.Wrapf(err, "zip: open %s", filepath.Base(path))
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, macOSMetadataPrefix) {
			continue
		}
		kind, ok := DocumentKindOf(f.Name)
		if !ok {
			continue
		}
		file := f
		fn(Member{Name: file.Name, Kind: kind, Read: func() ([]byte, error) {
			rc, err := file.Open()
			if err != nil {
				return nil, eris.Wrapf(err, "zip: open member %s", file.Name)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}})
	}
	return nil
}

// MailContainer reads a stored message and yields its PDF and HTML
// attachments. An HTML body that carries item records counts as a document.
type MailContainer struct{}

func (MailContainer) Members(path string, fn func(Member)) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "mail: read %s", filepath.Base(path))
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return eris.Wrapf(err, "mail: parse %s", filepath.Base(path))
	}

	parts := make([]*enmime.Part, 0, len(env.Attachments)+len(env.Inlines))
	parts = append(parts, env.Attachments...)
	parts = append(parts, env.Inlines...)
	for i, part := range parts {
		name := strings.TrimSpace(part.FileName)
		if name == "" {
			name = fmt.Sprintf("attachment-%d%s", i+1, extensionForType(part.ContentType))
		}
		kind, ok := DocumentKindOf(name)
		if !ok {
			continue
		}
		content := part.Content
		fn(Member{Name: name, Kind: kind, Read: func() ([]byte, error) { return content, nil }})
	}

	if strings.Contains(env.HTML, NFCeGrammar.Anchor) {
		body := []byte(env.HTML)
		fn(Member{Name: "body.html", Kind: internal.KindHTML, Read: func() ([]byte, error) { return body, nil }})
	}
	return nil
}

func extensionForType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "application/pdf":
		return ".pdf"
	case "text/html":
		return ".html"
	}
	return ""
}
