package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dannidrenovci/myriad-slides/stores/storetest"
)

func TestBlobStore(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	storetest.TestBlobStore(t, store)
}

func TestPutBlob_WritesUnderBasePath(t *testing.T) {
	base := t.TempDir()
	store, _ := NewStore(base)

	if err := store.PutBlob(context.Background(), "u1/a.pptx", strings.NewReader("data")); err != nil {
		t.Fatalf("PutBlob() failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(base, "u1", "a.pptx"))
	if err != nil || string(data) != "data" {
		t.Errorf("file content = %q, %v", data, err)
	}
}

func TestBlobKeysCannotEscape(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	ctx := context.Background()
	for _, key := range []string{"../escape", "/etc/passwd", "a/../../b", ""} {
		if err := store.PutBlob(ctx, key, strings.NewReader("x")); err == nil {
			t.Errorf("PutBlob(%q) should be rejected", key)
		}
		if _, err := store.GetBlob(ctx, key); err == nil {
			t.Errorf("GetBlob(%q) should be rejected", key)
		}
	}
}
