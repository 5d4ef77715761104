// Package store persists derived scopes as one CBOR file per scope.
// Encoding uses Core Deterministic Encoding so that saving and loading
// a scope reproduces it exactly, byte for byte.
package store

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/eleven-am/perimeter/internal/domain"
	"github.com/eleven-am/perimeter/internal/netset"
)

const fileSuffix = ".rules"

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// netip.Prefix marshals through MarshalText; without this it would
	// encode as an empty map and lose the range.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// Wire form: IP sets travel as their canonical prefix lists.
type scopeRecord struct {
	Name    string         `cbor:"name"`
	IPSpace []netip.Prefix `cbor:"ip_space"`
	Rules   []ruleRecord   `cbor:"rules"`
}

type ruleRecord struct {
	Src  []netip.Prefix `cbor:"src"`
	Dst  []netip.Prefix `cbor:"dst"`
	App  string         `cbor:"app"`
	Name string         `cbor:"name"`
}

// FileStore keeps one file per scope under a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid scope name %q", name)
	}
	return filepath.Join(s.dir, name+fileSuffix), nil
}

func (s *FileStore) Save(scope domain.AddressSpaceScope) error {
	path, err := s.path(scope.Name)
	if err != nil {
		return err
	}

	record := scopeRecord{Name: scope.Name}
	if scope.IPSpace != nil {
		record.IPSpace = scope.IPSpace.Prefixes()
	}
	for _, rule := range scope.Rules {
		record.Rules = append(record.Rules, ruleRecord{
			Src:  rule.Src.Prefixes(),
			Dst:  rule.Dst.Prefixes(),
			App:  rule.App,
			Name: rule.Name,
		})
	}

	data, err := encMode.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode scope %s: %w", scope.Name, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store directory %s: %w", s.dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scope %s: %w", scope.Name, err)
	}
	return nil
}

func (s *FileStore) Load(name string) (domain.AddressSpaceScope, error) {
	path, err := s.path(name)
	if err != nil {
		return domain.AddressSpaceScope{}, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return domain.AddressSpaceScope{}, &domain.NotFoundError{Kind: "scope", ID: name}
	}
	if err != nil {
		return domain.AddressSpaceScope{}, fmt.Errorf("read scope %s: %w", name, err)
	}

	var record scopeRecord
	if err := decMode.Unmarshal(data, &record); err != nil {
		return domain.AddressSpaceScope{}, fmt.Errorf("decode scope %s: %w", name, err)
	}

	scope := domain.AddressSpaceScope{Name: record.Name}
	scope.IPSpace, err = netset.FromPrefixes(record.IPSpace)
	if err != nil {
		return domain.AddressSpaceScope{}, fmt.Errorf("decode scope %s ip space: %w", name, err)
	}
	for _, rr := range record.Rules {
		src, err := netset.FromPrefixes(rr.Src)
		if err != nil {
			return domain.AddressSpaceScope{}, fmt.Errorf("decode scope %s rule %q: %w", name, rr.Name, err)
		}
		dst, err := netset.FromPrefixes(rr.Dst)
		if err != nil {
			return domain.AddressSpaceScope{}, fmt.Errorf("decode scope %s rule %q: %w", name, rr.Name, err)
		}
		scope.Rules = append(scope.Rules, domain.Rule{Src: src, Dst: dst, App: rr.App, Name: rr.Name})
	}
	return scope, nil
}

func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store directory %s: %w", s.dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), fileSuffix))
	}
	sort.Strings(names)
	return names, nil
}
