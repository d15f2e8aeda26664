// Package contacts records visitor contact details submitted through the
// chat front end into an .xlsx workbook that staff open in a spreadsheet.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/54b3r/docchat/internal/logging"
)

const (
	// DefaultPath is the workbook written when no path is configured.
	DefaultPath = "user_info.xlsx"
	// Sheet is the worksheet rows are appended to.
	Sheet = "Sheet1"
)

// header is the first row of a new workbook.
var header = []string{"name", "phone", "email", "address"}

// Contact is one submitted set of visitor details.
type Contact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Validate reports the first blank field.
func (c Contact) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"name", c.Name},
		{"phone", c.Phone},
		{"email", c.Email},
		{"address", c.Address},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("contacts: %s is required", f.name)
		}
	}
	return nil
}

func (c Contact) row() []interface{} {
	return []interface{}{c.Name, c.Phone, c.Email, c.Address}
}

// Book appends contacts to a workbook on disk. Writes are serialized, so a
// Book is safe for concurrent use within one process.
type Book struct {
	path string

	mu sync.Mutex
}

// NewBook returns a Book writing to path, or DefaultPath when empty.
func NewBook(path string) *Book {
	if path == "" {
		path = DefaultPath
	}
	return &Book{path: path}
}

// Path returns the workbook location.
func (b *Book) Path() string { return b.path }

// Add appends c as a new row, creating the workbook with a header row when
// it does not exist yet.
func (b *Book) Add(ctx context.Context, c Contact) error {
	if err := c.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	f, created, err := b.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.FromContext(ctx).Warn("contacts: close workbook", slog.String("error", cerr.Error()))
		}
	}()

	rows, err := f.GetRows(Sheet)
	if err != nil {
		return fmt.Errorf("contacts: read %s: %w", b.path, err)
	}
	next := len(rows) + 1
	if created || len(rows) == 0 {
		if err := setRow(f, 1, toAny(header)); err != nil {
			return err
		}
		next = 2
	}
	if err := setRow(f, next, c.row()); err != nil {
		return err
	}

	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("contacts: create directory: %w", err)
		}
	}
	if err := f.SaveAs(b.path); err != nil {
		return fmt.Errorf("contacts: save %s: %w", b.path, err)
	}
	logging.FromContext(ctx).Info("contact recorded", slog.String("workbook", b.path), slog.Int("row", next))
	return nil
}

// All returns every contact in the workbook, skipping the header row. A
// missing workbook yields no contacts and no error.
func (b *Book) All() ([]Contact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := excelize.OpenFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("contacts: open %s: %w", b.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(Sheet)
	if err != nil {
		return nil, fmt.Errorf("contacts: read %s: %w", b.path, err)
	}
	var out []Contact
	for i, r := range rows {
		if i == 0 {
			continue
		}
		r = append(r, make([]string, len(header))...)
		out = append(out, Contact{Name: r[0], Phone: r[1], Email: r[2], Address: r[3]})
	}
	return out, nil
}

// open loads the workbook, or creates an empty one. created reports which.
func (b *Book) open() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("contacts: open %s: %w", b.path, err)
	}
	idx, err := f.GetSheetIndex(Sheet)
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("contacts: locate %s: %w", Sheet, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(Sheet); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("contacts: create %s: %w", Sheet, err)
		}
	}
	return f, false, nil
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("contacts: cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(Sheet, cell, &values); err != nil {
		return fmt.Errorf("contacts: write row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
