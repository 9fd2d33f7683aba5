package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestDefaultHooksAreNoop(t *testing.T) {
	Reset()

	if _, ok := Gallery().(NoopGalleryHooks); !ok {
		t.Error("default Gallery() should be NoopGalleryHooks")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("default HTTP() should be NoopHTTPHooks")
	}
}

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	g := NoopGalleryHooks{}
	g.OnFetchStart(ctx, FetchPackage, "newtonsoft.json@13.0.1")
	g.OnFetchComplete(ctx, FetchPackage, "newtonsoft.json@13.0.1", time.Second, nil)
	g.OnResolve(ctx, "Newtonsoft.Json", "net45", true, time.Millisecond)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "example.com", "/")
	h.OnResponse(ctx, "GET", "example.com", "/", 200, time.Millisecond)
	h.OnError(ctx, "GET", "example.com", "/", errors.New("boom"))
}

func TestSetHooks(t *testing.T) {
	Reset()
	defer Reset()

	customGallery := &testGalleryHooks{}
	SetGalleryHooks(customGallery)
	if Gallery() != customGallery {
		t.Error("SetGalleryHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Gallery().(NoopGalleryHooks); !ok {
		t.Error("Reset() should restore NoopGalleryHooks")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("Reset() should restore NoopHTTPHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testGalleryHooks{}
	SetGalleryHooks(custom)
	SetGalleryHooks(nil)
	if Gallery() != custom {
		t.Error("SetGalleryHooks(nil) should be ignored")
	}

	SetHTTPHooks(nil)
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("SetHTTPHooks(nil) should be ignored")
	}
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	h := NewLogHooks(logger)
	ctx := context.Background()

	h.OnFetchStart(ctx, FetchVersions, "contoso.core")
	h.OnFetchComplete(ctx, FetchPackage, "contoso.core@1.0.0", 5*time.Millisecond, errors.New("not found"))
	h.OnResolve(ctx, "Contoso.Core", "net45", false, time.Millisecond)
	h.OnResponse(ctx, "GET", "api.nuget.org", "/v3/index.json", 200, time.Millisecond)

	out := buf.String()
	for _, want := range []string{
		"fetch start", "contoso.core",
		"fetch failed", "not found",
		"resolve", "found=false",
		"http response", "status=200",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLogHooksSilentAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})
	h := NewLogHooks(logger)

	h.OnFetchStart(context.Background(), FetchSearch, "json")
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}

type testGalleryHooks struct{ NoopGalleryHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
