// Package catalog supplies question bank documents from YAML: the banks
// compiled into the binary and, optionally, a directory of operator-provided files.
package catalog

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"career-check-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultBankID is served when no bank is requested.
const DefaultBankID = "pharmacy-career"

//go:embed banks/*.yaml
var embedded embed.FS

// Loader reads bank documents named <id>.yaml from a filesystem.
type Loader struct {
	fsys fs.FS
}

// Embedded returns a loader over the banks compiled into the binary.
func Embedded() *Loader {
	sub, err := fs.Sub(embedded, "banks")
	if err != nil {
		panic(err)
	}
	return &Loader{fsys: sub}
}

// NewDirLoader returns a loader over the YAML files in dir.
func NewDirLoader(dir string) *Loader {
	return &Loader{fsys: os.DirFS(dir)}
}

func (l *Loader) LoadBank(_ context.Context, bankID string) (domain.BankDocument, error) {
	if bankID == "" || strings.ContainsAny(bankID, `/\.`) {
		return domain.BankDocument{}, fmt.Errorf("%w: %q", domain.ErrBankNotFound, bankID)
	}
	data, err := fs.ReadFile(l.fsys, bankID+".yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return domain.BankDocument{}, fmt.Errorf("%w: %s", domain.ErrBankNotFound, bankID)
	}
	if err != nil {
		return domain.BankDocument{}, err
	}
	doc, err := Decode(data)
	if err != nil {
		return domain.BankDocument{}, fmt.Errorf("bank %s: %w", bankID, err)
	}
	if doc.ID == "" {
		doc.ID = bankID
	}
	return doc, nil
}

// All loads every bank in the loader, sorted by ID.
func (l *Loader) All(ctx context.Context) ([]domain.BankDocument, error) {
	names, err := fs.Glob(l.fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	docs := make([]domain.BankDocument, 0, len(names))
	for _, name := range names {
		doc, err := l.LoadBank(ctx, strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Decode parses a YAML bank document, rejecting unknown fields.
func Decode(data []byte) (domain.BankDocument, error) {
	var doc domain.BankDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return domain.BankDocument{}, fmt.Errorf("decode bank: %w", err)
	}
	return doc, nil
}

// BankLoader is the contract shared by every bank source.
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.BankDocument, error)
}

// Chain tries loaders in order, moving on only when a loader reports the bank missing.
type Chain []BankLoader

func (c Chain) LoadBank(ctx context.Context, bankID string) (domain.BankDocument, error) {
	for _, loader := range c {
		doc, err := loader.LoadBank(ctx, bankID)
		if errors.Is(err, domain.ErrBankNotFound) {
			continue
		}
		return doc, err
	}
	return domain.BankDocument{}, fmt.Errorf("%w: %s", domain.ErrBankNotFound, bankID)
}
