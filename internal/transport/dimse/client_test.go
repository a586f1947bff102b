package dimse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/dicomobj/dicomobjtest"
	"github.com/kailas-cloud/dicomgw/internal/domain"
)

// --- Mocks ---

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	fn    func(name string, args []string) error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()
	if f.fn != nil {
		return nil, f.fn(name, args)
	}
	return nil, nil
}

func (f *fakeRunner) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func keys(args []string) []string {
	var out []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-k" {
			out = append(out, args[i+1])
		}
	}
	return out
}

var (
	local   = domain.Peer{AET: "DICOMGW", Port: 9999}
	archive = domain.Peer{AET: "PACS", Host: "pacs.local", Port: 104}
)

func newClient(t *testing.T, mode string, r Runner) (*Client, string) {
	t.Helper()
	incoming := filepath.Join(t.TempDir(), ".incoming")
	return NewClient(&Config{
		Local:       local,
		Archive:     archive,
		Mode:        mode,
		IncomingDir: incoming,
		Runner:      r,
		Logger:      zap.NewNop(),
	}), incoming
}

// --- Find ---

func TestFind_BuildsArgumentsAndDecodes(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) error {
		dir := argAfter(args, "-od")
		for i := 1; i <= 2; i++ {
			fx := dicomobjtest.CT("1.2", "1.2.3", fmt.Sprintf("1.2.3.%d", i))
			if err := dicomobjtest.Write(filepath.Join(dir, fmt.Sprintf("rsp%04d.dcm", i)), fx); err != nil {
				return err
			}
		}
		return nil
	}}
	c, _ := newClient(t, ModeGet, r)

	env := domain.Envelope{
		Level: domain.LevelImage,
		Tags: []domain.TagValue{
			{Tag: domain.TagSOPInstanceUID},
			{Tag: domain.TagStudyInstanceUID, Value: "1.2"},
		},
	}
	records, err := c.Find(context.Background(), env)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	got := r.last()
	if got.name != "findscu" {
		t.Fatalf("tool = %q", got.name)
	}
	wantPrefix := []string{"-S", "-aet", "DICOMGW", "-aec", "PACS", "pacs.local", "104", "--extract"}
	if !slices.Equal(got.args[:len(wantPrefix)], wantPrefix) {
		t.Errorf("args = %v", got.args)
	}
	wantKeys := []string{"0008,0052=IMAGE", "0008,0018", "0020,000D=1.2"}
	if !slices.Equal(keys(got.args), wantKeys) {
		t.Errorf("keys = %v, want %v", keys(got.args), wantKeys)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if uid, _ := records[1].String(domain.TagSOPInstanceUID); uid != "1.2.3.2" {
		t.Errorf("record order: second SOP = %q", uid)
	}
	if _, err := os.Stat(argAfter(got.args, "-od")); !os.IsNotExist(err) {
		t.Error("response directory should be removed")
	}
}

func TestFind_EnvelopePeersOverrideDefaults(t *testing.T) {
	r := &fakeRunner{}
	c, _ := newClient(t, ModeGet, r)

	other := domain.Peer{AET: "OTHER", Host: "10.0.0.1", Port: 11112}
	_, err := c.Find(context.Background(), domain.Envelope{Level: domain.LevelStudy, Target: other})
	if err != nil {
		t.Fatal(err)
	}
	args := r.last().args
	if argAfter(args, "-aec") != "OTHER" || !slices.Contains(args, "10.0.0.1") {
		t.Errorf("args = %v", args)
	}
}

func TestFind_ToolFailure(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) error {
		return &CommandError{Name: "findscu", Output: "Association Request Failed", Err: errors.New("exit status 1")}
	}}
	c, _ := newClient(t, ModeGet, r)

	_, err := c.Find(context.Background(), domain.Envelope{Level: domain.LevelStudy})
	if !errors.Is(err, domain.ErrFindFailed) {
		t.Fatalf("expected ErrFindFailed, got %v", err)
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || !strings.Contains(cmdErr.Output, "Association") {
		t.Errorf("expected CommandError with output, got %v", err)
	}
}

func TestFind_MalformedResponse(t *testing.T) {
	r := &fakeRunner{fn: func(_ string, args []string) error {
		return os.WriteFile(filepath.Join(argAfter(args, "-od"), "rsp0001.dcm"), []byte("garbage"), 0o644)
	}}
	c, _ := newClient(t, ModeGet, r)

	_, err := c.Find(context.Background(), domain.Envelope{Level: domain.LevelStudy})
	if !errors.Is(err, domain.ErrFindFailed) || !errors.Is(err, domain.ErrParseFailure) {
		t.Errorf("expected find+parse failure, got %v", err)
	}
}

// --- Retrieve ---

func TestRetrieve_GetModeRenamesBySOP(t *testing.T) {
	r := &fakeRunner{fn: func(_ string, args []string) error {
		dir := argAfter(args, "-od")
		for i := 1; i <= 3; i++ {
			sop := fmt.Sprintf("1.2.3.%d", i)
			if err := dicomobjtest.Write(filepath.Join(dir, "CT."+sop), dicomobjtest.CT("1.2", "1.2.3", sop)); err != nil {
				return err
			}
		}
		return nil
	}}
	c, incoming := newClient(t, ModeGet, r)
	dest := filepath.Join(t.TempDir(), "1.2")

	if err := c.Retrieve(context.Background(), "1.2", "1.2.3", dest); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	got := r.last()
	if got.name != "getscu" {
		t.Errorf("tool = %q", got.name)
	}
	wantKeys := []string{"0008,0052=SERIES", "0020,000D=1.2", "0020,000E=1.2.3"}
	if !slices.Equal(keys(got.args), wantKeys) {
		t.Errorf("keys = %v", keys(got.args))
	}
	for i := 1; i <= 3; i++ {
		if _, err := os.Stat(filepath.Join(dest, fmt.Sprintf("1.2.3.%d.dcm", i))); err != nil {
			t.Errorf("object %d missing: %v", i, err)
		}
	}
	entries, _ := os.ReadDir(incoming)
	if len(entries) != 0 {
		t.Errorf("staging not cleaned: %v", entries)
	}
}

func TestRetrieve_MoveModeIngestsOnlyRequestedStudy(t *testing.T) {
	var incoming string
	r := &fakeRunner{fn: func(string, []string) error {
		if err := dicomobjtest.Write(filepath.Join(incoming, "CT.a"), dicomobjtest.CT("1.2", "1.2.3", "1.2.3.1")); err != nil {
			return err
		}
		return dicomobjtest.Write(filepath.Join(incoming, "CT.b"), dicomobjtest.CT("9.9", "9.9.1", "9.9.1.1"))
	}}
	c, in := newClient(t, ModeMove, r)
	incoming = in
	dest := filepath.Join(t.TempDir(), "1.2")

	if err := c.Retrieve(context.Background(), "1.2", "1.2.3", dest); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	got := r.last()
	if got.name != "movescu" || argAfter(got.args, "-aem") != "DICOMGW" {
		t.Errorf("call = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "1.2.3.1.dcm")); err != nil {
		t.Errorf("requested object missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(incoming, "CT.b")); err != nil {
		t.Errorf("other study's object should stay in incoming: %v", err)
	}
}

func TestRetrieve_NothingReceived(t *testing.T) {
	for _, mode := range []string{ModeGet, ModeMove} {
		t.Run(mode, func(t *testing.T) {
			c, _ := newClient(t, mode, &fakeRunner{})
			dest := filepath.Join(t.TempDir(), "1.2")

			err := c.Retrieve(context.Background(), "1.2", "1.2.3", dest)
			if err == nil || !strings.Contains(err.Error(), "no objects received") {
				t.Errorf("expected no-objects error, got %v", err)
			}
			if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("study dir must not be created, stat err = %v", err)
			}
		})
	}
}

func TestRetrieve_ToolFailure(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) error { return errors.New("exit status 1") }}
	c, _ := newClient(t, ModeGet, r)
	dest := filepath.Join(t.TempDir(), "1.2")

	if err := c.Retrieve(context.Background(), "1.2", "1.2.3", dest); err == nil {
		t.Error("expected error")
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("study dir must not be created, stat err = %v", err)
	}
}

// --- Echo / SCP ---

func TestEcho(t *testing.T) {
	r := &fakeRunner{}
	c, _ := newClient(t, ModeGet, r)

	if err := c.Echo(context.Background()); err != nil {
		t.Fatalf("Echo: %v", err)
	}
	got := r.last()
	if got.name != "echoscu" || slices.Contains(got.args, "-S") {
		t.Errorf("call = %+v", got)
	}

	r.fn = func(string, []string) error { return errors.New("refused") }
	if err := c.Echo(context.Background()); err == nil || !strings.Contains(err.Error(), "PACS@pacs.local:104") {
		t.Errorf("expected echo error naming the peer, got %v", err)
	}
}

func TestSCP_RestartsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	r := &fakeRunner{fn: func(string, []string) error {
		runs++
		if runs == 2 {
			cancel()
		}
		return errors.New("crashed")
	}}
	scp := NewSCP(&Config{
		Local:       local,
		IncomingDir: filepath.Join(t.TempDir(), "in"),
		Runner:      r,
		Logger:      zap.NewNop(),
	})
	scp.restart = time.Millisecond

	if err := scp.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
	args := r.last().args
	if args[len(args)-1] != "9999" || argAfter(args, "-aet") != "DICOMGW" {
		t.Errorf("args = %v", args)
	}
}
