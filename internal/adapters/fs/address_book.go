package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// AddressBookAdapter loads known contract addresses from a flat JSON map,
// a previous run report or a dotenv file keyed by contract name
type AddressBookAdapter struct {
	fs  afero.Fs
	log *slog.Logger
}

// NewAddressBookAdapter creates an address book loader
func NewAddressBookAdapter(fs afero.Fs, log *slog.Logger) *AddressBookAdapter {
	return &AddressBookAdapter{fs: fs, log: log.With("component", "AddressBook")}
}

// Load implements usecase.AddressBookLoader
func (a *AddressBookAdapter) Load(ctx context.Context, path string) (map[string]common.Address, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read address book: %w", err)
	}

	var raw map[string]string
	trimmed := bytes.TrimSpace(data)
	switch {
	case strings.EqualFold(filepath.Ext(path), ".json") || bytes.HasPrefix(trimmed, []byte("{")):
		raw, err = decodeJSONBook(trimmed)
	default:
		raw, err = godotenv.UnmarshalBytes(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse address book %s: %w", path, err)
	}

	book := make(map[string]common.Address, len(raw))
	for name, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("%w: %s = %q in %s", domain.ErrInvalidAddress, name, value, path)
		}
		book[name] = common.HexToAddress(value)
	}

	a.log.Debug("address book loaded", "path", path, "entries", len(book))
	return book, nil
}

// decodeJSONBook accepts either a run report or a {name: address} map
func decodeJSONBook(data []byte) (map[string]string, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	if _, isReport := probe["runId"]; isReport {
		var report models.RunReport
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, err
		}
		out := report.Addresses()
		if report.Signer != "" {
			out[models.SignerRef] = report.Signer
		}
		return out, nil
	}

	out := make(map[string]string, len(probe))
	for name, value := range probe {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, fmt.Errorf("entry %q is not a string", name)
		}
		out[name] = s
	}
	return out, nil
}

var _ usecase.AddressBookLoader = (*AddressBookAdapter)(nil)
