package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-journal-service/internal/models"
)

var fixedNow = time.Date(2026, time.October, 19, 15, 30, 0, 0, time.UTC)

func newFileStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC)}, opts...)
	return New(b, zap.NewNop(), opts...), path
}

type failingBackend struct {
	MemoryBackend
	writeErr error
}

func (f *failingBackend) Write(ctx context.Context, data []byte) error {
	return f.writeErr
}

// TestStore_Append_FillsDate verifies that an entry without a date is stored
// first with today's long-form date.
func TestStore_Append_FillsDate(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	stored, err := s.Append(ctx, models.Entry{"city": "Reno", "tempF": 71})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if stored["date"] != "Monday, October 19, 2026" {
		t.Errorf("stored date = %v, want Monday, October 19, 2026", stored["date"])
	}

	all := s.LoadAll(ctx)
	if len(all) != 1 {
		t.Fatalf("LoadAll() len = %d, want 1", len(all))
	}
	if all[0]["date"] != "Monday, October 19, 2026" {
		t.Errorf("loaded date = %v", all[0]["date"])
	}
	if all[0]["city"] != "Reno" {
		t.Errorf("loaded city = %v, want Reno", all[0]["city"])
	}
	if all[0]["tempF"] != json.Number("71") {
		t.Errorf("loaded tempF = %#v, want json.Number(71)", all[0]["tempF"])
	}
}

// TestStore_Append_KeepsDate verifies that a caller-supplied date is never recomputed.
func TestStore_Append_KeepsDate(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	stored, err := s.Append(ctx, models.Entry{"city": "Reno", "date": "Friday, July 4, 2025"})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if stored["date"] != "Friday, July 4, 2025" {
		t.Errorf("stored date = %v, want caller date", stored["date"])
	}
	if got := s.LoadAll(ctx)[0]["date"]; got != "Friday, July 4, 2025" {
		t.Errorf("loaded date = %v, want caller date", got)
	}
}

func TestStore_Append_EmptyDateIsFilled(t *testing.T) {
	s, _ := newFileStore(t)
	stored, err := s.Append(context.Background(), models.Entry{"date": ""})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if stored["date"] != "Monday, October 19, 2026" {
		t.Errorf("stored date = %v, want today", stored["date"])
	}
}

func TestStore_Append_DoesNotMutateInput(t *testing.T) {
	s, _ := newFileStore(t)
	in := models.Entry{"city": "Reno"}
	if _, err := s.Append(context.Background(), in); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, ok := in["date"]; ok {
		t.Error("Append() modified caller entry")
	}
}

// TestStore_Append_UsesConfiguredLocation verifies that "today" is computed in
// the configured time zone rather than UTC.
func TestStore_Append_UsesConfiguredLocation(t *testing.T) {
	late := time.Date(2026, time.October, 20, 3, 0, 0, 0, time.UTC)
	pdt := time.FixedZone("PDT", -7*60*60)
	s := New(NewMemoryBackend(), nil, WithClock(func() time.Time { return late }), WithLocation(pdt))

	stored, err := s.Append(context.Background(), models.Entry{})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if stored["date"] != "Monday, October 19, 2026" {
		t.Errorf("stored date = %v, want Monday, October 19, 2026", stored["date"])
	}
}

// TestStore_Append_PrependOrder verifies newest-first ordering.
func TestStore_Append_PrependOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	for _, city := range []string{"a", "b", "c"} {
		if _, err := s.Append(ctx, models.Entry{"city": city}); err != nil {
			t.Fatalf("Append(%s) error = %v", city, err)
		}
	}
	all := s.LoadAll(ctx)
	var got []string
	for _, e := range all {
		got = append(got, e.City())
	}
	if want := []string{"c", "b", "a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestStore_Append_AllowsDuplicates(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)
	e := models.Entry{"city": "Reno", "date": "Monday, October 19, 2026"}
	for i := 0; i < 2; i++ {
		if _, err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if n := len(s.LoadAll(ctx)); n != 2 {
		t.Errorf("LoadAll() len = %d, want 2", n)
	}
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s, path := newFileStore(t)
	if _, err := s.Append(ctx, models.Entry{"city": "Reno"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	all := s.LoadAll(ctx)
	if all == nil || len(all) != 0 {
		t.Errorf("LoadAll() after Clear = %#v, want empty non-nil", all)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(raw) != "[]" {
		t.Errorf("file content = %q, want []", raw)
	}
}

func TestStore_LoadAll_MissingFile(t *testing.T) {
	s, path := newFileStore(t)
	all := s.LoadAll(context.Background())
	if all == nil || len(all) != 0 {
		t.Errorf("LoadAll() = %#v, want empty non-nil collection", all)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadAll() created %s; load must not write", path)
	}
}

// TestStore_LoadAll_CorruptFile verifies that a corrupt document reads as empty,
// is logged at error level, and is left untouched on disk.
func TestStore_LoadAll_CorruptFile(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	s := New(b, zap.New(core))

	if all := s.LoadAll(context.Background()); len(all) != 0 {
		t.Errorf("LoadAll() len = %d, want 0", len(all))
	}
	if n := logs.FilterMessage("parse weather entries").FilterLevelExact(zapcore.ErrorLevel).Len(); n != 1 {
		t.Errorf("parse error logs = %d, want 1", n)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "{not json" {
		t.Errorf("corrupt file was modified: %q", raw)
	}
}

func TestStore_LoadAll_JSONNull(t *testing.T) {
	b := NewMemoryBackend()
	_ = b.Write(context.Background(), []byte("null"))
	s := New(b, nil)
	if all := s.LoadAll(context.Background()); all == nil || len(all) != 0 {
		t.Errorf("LoadAll() = %#v, want empty non-nil", all)
	}
}

// TestStore_SaveAll_RoundTrip verifies that LoadAll returns exactly what SaveAll wrote.
func TestStore_SaveAll_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := newFileStore(t)

	want := models.Collection{
		{"city": "Reno", "tempF": json.Number("71"), "date": "Monday, October 19, 2026"},
		{"city": "Boise", "tempF": json.Number("55.5"), "windy": true, "note": nil},
		{},
	}
	if err := s.SaveAll(ctx, want); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if got := s.LoadAll(ctx); !reflect.DeepEqual(got, want) {
		t.Errorf("LoadAll() = %#v, want %#v", got, want)
	}

	raw, _ := os.ReadFile(path)
	var check []map[string]any
	if err := json.Unmarshal(raw, &check); err != nil {
		t.Fatalf("persisted file is not a JSON array: %v", err)
	}
	if len(check) != 3 {
		t.Errorf("persisted len = %d, want 3", len(check))
	}
}

func TestStore_SaveAll_NilWritesEmptyArray(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := New(b, nil)
	if err := s.SaveAll(ctx, nil); err != nil {
		t.Fatalf("SaveAll(nil) error = %v", err)
	}
	raw, _ := b.Read(ctx)
	if string(raw) != "[]" {
		t.Errorf("document = %q, want []", raw)
	}
}

// TestStore_WriteFailure verifies that backend write errors surface as ErrWrite
// and are logged.
func TestStore_WriteFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	b := &failingBackend{writeErr: errors.New("disk full")}
	s := New(b, zap.New(core))
	ctx := context.Background()

	if _, err := s.Append(ctx, models.Entry{"city": "Reno"}); !errors.Is(err, ErrWrite) {
		t.Errorf("Append() error = %v, want ErrWrite", err)
	}
	if err := s.Clear(ctx); !errors.Is(err, ErrWrite) {
		t.Errorf("Clear() error = %v, want ErrWrite", err)
	}
	if err := s.SaveAll(ctx, models.Collection{}); !errors.Is(err, ErrWrite) {
		t.Errorf("SaveAll() error = %v, want ErrWrite", err)
	}
	if n := logs.FilterMessage("write weather entries").Len(); n != 3 {
		t.Errorf("write error logs = %d, want 3", n)
	}
}

// TestStore_Append_Concurrent verifies that concurrent appends do not lose entries.
func TestStore_Append_Concurrent(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Append(ctx, models.Entry{"seq": i}); err != nil {
				t.Errorf("Append(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(s.LoadAll(ctx)); got != n {
		t.Errorf("LoadAll() len = %d, want %d", got, n)
	}
}

func TestStore_CanceledContext(t *testing.T) {
	s, _ := newFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Append(ctx, models.Entry{"city": "Reno"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Append() error = %v, want context.Canceled", err)
	}
}
