package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kdimtricp/sharpframe/internal/models"
	"github.com/kdimtricp/sharpframe/internal/pipeline"
	"github.com/kdimtricp/sharpframe/internal/publish"
	"github.com/kdimtricp/sharpframe/internal/session"
	"github.com/kdimtricp/sharpframe/internal/sharpness"
	"github.com/kdimtricp/sharpframe/internal/storage"
	"github.com/kdimtricp/sharpframe/internal/video"
	"github.com/kdimtricp/sharpframe/internal/video/videotest"
)

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	paths []string
}

func (f *fakePublisher) Publish(ctx context.Context, imagePath string, meta publish.Metadata) (*publish.HostedImage, error) {
	f.mu.Lock()
	f.paths = append(f.paths, imagePath)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &publish.HostedImage{Link: "https://img.example.com/" + filepath.Base(imagePath)}, nil
}

type fakeAnnotator struct {
	release   chan struct{}
	panicWith any
}

func (f *fakeAnnotator) Describe(ctx context.Context, imageURL string) (string, error) {
	if f.release != nil {
		<-f.release
	}
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return "caption for " + imageURL, nil
}

type testServer struct {
	server    *httptest.Server
	handler   http.Handler
	storage   *storage.LocalStorage
	state     *session.State
	publisher *fakePublisher
	annotator *fakeAnnotator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()

	store, err := storage.NewLocalStorage(filepath.Join(root, "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	codec := videotest.NewCodec()
	state := session.NewState()
	publisher := &fakePublisher{}
	annotator := &fakeAnnotator{}

	orch := pipeline.New(
		video.NewAssembler(codec),
		sharpness.NewScanner(codec, filepath.Join(root, "output")),
		publisher,
		annotator,
		state,
		pipeline.Options{
			FrameDir:        store.Dir(),
			VideoPath:       filepath.Join(root, "output.mp4"),
			FrameRate:       5,
			SampleInterval:  1,
			ExternalTimeout: 5 * time.Second,
		},
	)

	app := &App{
		Storage:       store,
		State:         state,
		Pipeline:      orch,
		MaxUploadSize: 1 << 20,
		Now: func() time.Time {
			return time.Date(2024, 11, 3, 14, 5, 9, 0, time.UTC)
		},
	}

	handler := NewRouter(app)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testServer{server: server, handler: handler, storage: store, state: state, publisher: publisher, annotator: annotator}
}

func (ts *testServer) post(t *testing.T, path string, body []byte) (int, string) {
	t.Helper()
	status, data, err := ts.send(path, body)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return status, data
}

// send is safe to call from goroutines other than the test's.
func (ts *testServer) send(path string, body []byte) (int, string, error) {
	resp, err := http.Post(ts.server.URL+path, "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(data), nil
}

func (ts *testServer) status(t *testing.T) statusResponse {
	t.Helper()
	resp, err := http.Get(ts.server.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode /status body: %v", err)
	}
	return st
}

func (ts *testServer) getResponse(t *testing.T) (int, string) {
	t.Helper()
	resp, err := http.Get(ts.server.URL + "/get_response")
	if err != nil {
		t.Fatalf("GET /get_response: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /get_response body: %v", err)
	}
	return resp.StatusCode, body["response"]
}

func solidJPEG(t *testing.T, level uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, videotest.Solid(16, 16, color.Gray{Y: level}), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	ts.annotator.release = make(chan struct{})

	frame := solidJPEG(t, 128)
	for i := 0; i < 3; i++ {
		status, body := ts.post(t, "/upload", frame)
		if status != http.StatusOK || body != msgFrameReceived {
			t.Fatalf("upload %d: %d %q", i, status, body)
		}
	}

	frames, err := ts.storage.ListFrames()
	if err != nil {
		t.Fatal(err)
	}
	for i, path := range frames {
		want := fmt.Sprintf("frame_20241103_140509_%04d.jpg", i)
		if filepath.Base(path) != want {
			t.Errorf("frame %d stored as %s, want %s", i, filepath.Base(path), want)
		}
	}

	if status, text := ts.getResponse(t); status != http.StatusAccepted || text != msgNotReady {
		t.Fatalf("before processing: %d %q", status, text)
	}

	done := make(chan error, 1)
	var finishedStatus int
	var finishedBody string
	go func() {
		var err error
		finishedStatus, finishedBody, err = ts.send("/finished", nil)
		done <- err
	}()

	// the run is parked in the annotator, so the slot must still be clear
	time.Sleep(50 * time.Millisecond)
	if status, text := ts.getResponse(t); status != http.StatusAccepted || text != msgNotReady {
		t.Errorf("during processing: %d %q", status, text)
	}
	close(ts.annotator.release)
	if err := <-done; err != nil {
		t.Fatalf("POST /finished: %v", err)
	}

	if finishedStatus != http.StatusOK {
		t.Fatalf("/finished status = %d, body %q", finishedStatus, finishedBody)
	}
	var finished map[string]string
	if err := json.Unmarshal([]byte(finishedBody), &finished); err != nil || finished["status"] != msgComplete {
		t.Errorf("/finished body = %q", finishedBody)
	}

	status, text := ts.getResponse(t)
	if status != http.StatusOK {
		t.Fatalf("after processing: %d %q", status, text)
	}
	if !strings.Contains(text, sharpness.FileName(sharpness.DefaultPrefix, 0, 0)) {
		t.Errorf("annotation %q is not tied to frame 0", text)
	}
}

func TestConcurrentUploadsProduceDistinctFiles(t *testing.T) {
	ts := newTestServer(t)
	frame := solidJPEG(t, 50)

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(ts.server.URL+"/upload", "image/jpeg", bytes.NewReader(frame))
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("status %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	frames, err := ts.storage.ListFrames()
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != n {
		t.Errorf("stored %d frames, want %d", len(frames), n)
	}
	if got := ts.state.Received(); got != n {
		t.Errorf("Received() = %d, want %d", got, n)
	}
}

func TestFinishedWithoutFrames(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.post(t, "/finished", nil)
	if status != http.StatusBadRequest || body != msgNoFrames {
		t.Errorf("/finished = %d %q", status, body)
	}
}

func TestFinishedPublishFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.publisher.err = &publish.HostError{StatusCode: 503, Message: "unavailable"}

	ts.post(t, "/upload", solidJPEG(t, 10))

	status, body := ts.post(t, "/finished", nil)
	if status != http.StatusOK || !strings.Contains(body, msgComplete) {
		t.Fatalf("/finished = %d %q", status, body)
	}
	if status, text := ts.getResponse(t); status != http.StatusAccepted || text != msgNotReady {
		t.Errorf("annotation should stay unavailable, got %d %q", status, text)
	}

	st := ts.status(t)
	if st.Stage != "failed" || st.LastRun == nil || st.LastRun.Error == "" || st.FramesReceived != 1 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestUploadRejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body []byte
		want int
	}{
		{"empty body", nil, http.StatusBadRequest},
		{"over the size limit", make([]byte, 2<<20), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(tt.body))
			ts.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	frames, err := ts.storage.ListFrames()
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 0 {
		t.Errorf("rejected uploads left %d files behind", len(frames))
	}
	if st := ts.status(t); st.FramesReceived != 0 {
		t.Errorf("frames_received = %d after rejected uploads, want 0", st.FramesReceived)
	}
}

func TestFinishedRecoversPipelinePanic(t *testing.T) {
	ts := newTestServer(t)
	ts.annotator.panicWith = "caption client blew up"

	ts.post(t, "/upload", solidJPEG(t, 10))

	status, body := ts.post(t, "/finished", nil)
	if status != http.StatusInternalServerError || !strings.Contains(body, "caption client blew up") {
		t.Fatalf("/finished = %d %q", status, body)
	}
	if st := ts.status(t); st.Stage != "failed" || st.LastRun == nil || st.LastRun.Error == "" {
		t.Errorf("unexpected status %+v", st)
	}

	// the server keeps serving
	if status, _ := ts.post(t, "/upload", solidJPEG(t, 20)); status != http.StatusOK {
		t.Errorf("upload after panic = %d", status)
	}
}

type failingProcessor struct{ err error }

func (p failingProcessor) Process(ctx context.Context) (*models.Run, error) { return nil, p.err }
func (p failingProcessor) Status() pipeline.Status                          { return pipeline.Status{} }

func TestFinishedUnexpectedError(t *testing.T) {
	app := &App{State: session.NewState(), Pipeline: failingProcessor{err: errors.New("cannot open video")}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/finished", nil)

	NewRouter(app).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError || rec.Body.String() != "cannot open video" {
		t.Errorf("/finished = %d %q", rec.Code, rec.Body.String())
	}
}

func TestPing(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(&App{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Errorf("/ping = %d %q", rec.Code, rec.Body.String())
	}
}
