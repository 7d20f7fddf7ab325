package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"sync"
	"testing"
	"time"
)

func phrase() []byte {
	pcm := make([]byte, 16000) // 0.5s
	for i := range pcm {
		pcm[i] = byte(i % 7)
	}
	return pcm
}

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		keys     Keys
		want     string
		wantErr  error
	}{
		{"auto prefers deepgram", "", Keys{Groq: "g", Deepgram: "d"}, "deepgram", nil},
		{"auto groq", "", Keys{Groq: "g", OpenAI: "o"}, "groq", nil},
		{"auto openai", "", Keys{OpenAI: "o"}, "openai", nil},
		{"explicit openai", "openai", Keys{Groq: "g", OpenAI: "o"}, "openai", nil},
		{"none", "", Keys{}, "", ErrNoProvider},
		{"explicit missing key", "groq", Keys{OpenAI: "o"}, "", ErrNoProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.provider, tt.keys)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if tr.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", tr.Name(), tt.want)
			}
		})
	}

	if _, err := New("whisper.cpp", Keys{}); err == nil || errors.Is(err, ErrNoProvider) {
		t.Errorf("unknown provider err = %v", err)
	}
}

func TestGroqRecognize(t *testing.T) {
	var gotLang, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotLang = r.FormValue("language")
		_, fh, err := r.FormFile("file")
		if err == nil {
			gotFile = fh.Filename
		}
		json.NewEncoder(w).Encode(map[string]any{"text": "  hello world  ", "duration": 0.5})
	}))
	defer srv.Close()

	g := newGroq("key", srv.URL)
	g.SetLanguage("en")
	text, err := g.Recognize(context.Background(), phrase())
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}
	if gotLang != "en" {
		t.Errorf("language = %q", gotLang)
	}
	if gotFile != "audio.flac" {
		t.Errorf("filename = %q", gotFile)
	}
}

func TestGroqEmptyTextIsNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"text":"   "}`)
	}))
	defer srv.Close()

	_, err := newGroq("key", srv.URL).Recognize(context.Background(), phrase())
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestGroqHTTPErrorIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newGroq("key", srv.URL).Recognize(context.Background(), phrase())
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if se.StatusCode != http.StatusTooManyRequests || se.Provider != "groq" {
		t.Errorf("ServiceError = %+v", se)
	}
	if !strings.Contains(se.Error(), "rate limited") {
		t.Errorf("Error() = %q", se.Error())
	}
}

func TestDeepgramRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "audio/flac" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.URL.Query().Get("language") != "de" {
			t.Errorf("language = %q", r.URL.Query().Get("language"))
		}
		io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":"hallo","confidence":0.9}]}]}}`)
	}))
	defer srv.Close()

	d := newDeepgram("key", srv.URL)
	d.SetLanguage("de")
	text, err := d.Recognize(context.Background(), phrase())
	if err != nil {
		t.Fatal(err)
	}
	if text != "hallo" {
		t.Errorf("text = %q", text)
	}
}

func TestOpenAIRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"from openai"}`)
	}))
	defer srv.Close()

	o := newOpenAIWithBaseURL("key", srv.URL+"/v1")
	text, err := o.Recognize(context.Background(), phrase())
	if err != nil {
		t.Fatal(err)
	}
	if text != "from openai" {
		t.Errorf("text = %q", text)
	}
}

func TestOpenAIErrorIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := newOpenAIWithBaseURL("key", srv.URL+"/v1").Recognize(context.Background(), phrase())
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if se.Provider != "openai" {
		t.Errorf("Provider = %q", se.Provider)
	}
}

func TestFakeScript(t *testing.T) {
	boom := &ServiceError{Provider: "fake", Err: errors.New("boom")}
	f := NewFake(FakeResult{Text: "one"}, FakeResult{Err: boom}, FakeResult{})
	ctx := context.Background()

	if got, err := f.Recognize(ctx, nil); err != nil || got != "one" {
		t.Fatalf("first = %q, %v", got, err)
	}
	if _, err := f.Recognize(ctx, nil); !errors.Is(err, boom) {
		t.Fatalf("second err = %v", err)
	}
	if _, err := f.Recognize(ctx, nil); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("third err = %v", err)
	}
	if _, err := f.Recognize(ctx, nil); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("exhausted err = %v", err)
	}
	if f.Calls() != 4 {
		t.Errorf("Calls() = %d, want 4", f.Calls())
	}
}

func TestFakeDelayHonoursContext(t *testing.T) {
	f := NewFakeText("late")
	f.Delay = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Recognize(ctx, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestOpenAIRecordsNetworkMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"timed"}`)
	}))
	defer srv.Close()

	o := newOpenAIWithBaseURL("key", srv.URL+"/v1")
	res, err := o.transcribe(context.Background(), phrase(), "wav")
	if err != nil {
		t.Fatal(err)
	}
	if res.Metrics == nil || res.Metrics.Total < 20*time.Millisecond || res.Metrics.TTFB <= 0 {
		t.Errorf("metrics = %+v", res.Metrics)
	}
}

func TestStreamingDoerWithoutSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := streamingDoer{c: NewTracedClient("")}.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if body, _ := io.ReadAll(resp.Body); string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
}

func TestTraceHooksFromReadAndWriteLoops(t *testing.T) {
	m := &NetworkMetrics{}
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	req, done := trace(req, m)
	ct := httptrace.ContextClientTrace(req.Context())

	ct.GotConn(httptrace.GotConnInfo{Reused: true})
	ct.WroteHeaders()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ct.WroteRequest(httptrace.WroteRequestInfo{})
		}()
		go func() {
			defer wg.Done()
			ct.GotFirstResponseByte()
		}()
	}
	wg.Wait()
	done()

	if !m.ConnReused {
		t.Error("ConnReused not recorded")
	}
	if m.Total <= 0 {
		t.Errorf("Total = %v", m.Total)
	}
}
