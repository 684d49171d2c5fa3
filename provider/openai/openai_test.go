package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/mhpenta/stylegen"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPNG(t *testing.T) stylegen.EncodedImage {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.RGBA{R: 200, G: 100, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return stylegen.NewEncodedImage(buf.Bytes(), stylegen.MIMETypePNG)
}

// editCall is what the fake server saw on one /images/edits request.
type editCall struct {
	fields     map[string]string
	imageField string
	images     int
	imageTypes []string
	firstImage []byte
}

// fakeAPI is an httptest server standing in for the OpenAI REST API. Each
// handler func returns the status and body for one call; nil handlers answer
// 500.
type fakeAPI struct {
	srv *httptest.Server

	mu          sync.Mutex
	edits       []editCall
	responses   []map[string]any
	generations []map[string]any

	EditFunc       func(call editCall) (int, string)
	ResponsesFunc  func(req map[string]any) (int, string)
	GenerationFunc func(req map[string]any) (int, string)
	files          map[string][]byte
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	api := &fakeAPI{files: make(map[string][]byte)}
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/images/edits", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("invalid multipart body: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		call := editCall{fields: make(map[string]string)}
		for k, v := range r.MultipartForm.Value {
			call.fields[k] = v[0]
		}
		for field, files := range r.MultipartForm.File {
			call.imageField = field
			call.images += len(files)
			for i, fh := range files {
				call.imageTypes = append(call.imageTypes, fh.Header.Get("Content-Type"))
				if i == 0 {
					f, _ := fh.Open()
					call.firstImage, _ = io.ReadAll(f)
					f.Close()
				}
			}
		}

		api.mu.Lock()
		api.edits = append(api.edits, call)
		api.mu.Unlock()

		api.reply(w, api.EditFunc, call)
	})

	mux.HandleFunc("/v1/responses", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("invalid json body: %v", err)
		}
		api.mu.Lock()
		api.responses = append(api.responses, req)
		api.mu.Unlock()

		if api.ResponsesFunc == nil {
			writeBody(w, http.StatusInternalServerError, "unexpected call")
			return
		}
		status, body := orDefault(api.ResponsesFunc(req))
		writeBody(w, status, body)
	})

	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("invalid json body: %v", err)
		}
		api.mu.Lock()
		api.generations = append(api.generations, req)
		api.mu.Unlock()

		if api.GenerationFunc == nil {
			writeBody(w, http.StatusInternalServerError, "unexpected call")
			return
		}
		status, body := orDefault(api.GenerationFunc(req))
		writeBody(w, status, body)
	})

	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		data, ok := api.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	})

	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func (api *fakeAPI) reply(w http.ResponseWriter, fn func(editCall) (int, string), call editCall) {
	if fn == nil {
		writeBody(w, http.StatusInternalServerError, "unexpected call")
		return
	}
	status, body := orDefault(fn(call))
	writeBody(w, status, body)
}

func orDefault(status int, body string) (int, string) {
	if status == 0 {
		status = http.StatusOK
	}
	return status, body
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (api *fakeAPI) editCalls() []editCall {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]editCall(nil), api.edits...)
}

func (api *fakeAPI) responseCalls() []map[string]any {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]map[string]any(nil), api.responses...)
}

func (api *fakeAPI) generationCalls() []map[string]any {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]map[string]any(nil), api.generations...)
}

func (api *fakeAPI) config() Config {
	return Config{
		APIKey:                 "sk-test",
		BaseURL:                api.srv.URL + "/v1/",
		ResponsesModel:         "gpt-4.1-nano",
		FallbackResponseModels: []string{"gpt-4o-mini", "gpt-4.1-nano", "gpt-4o"},
		Size:                   DefaultSize,
		Quality:                DefaultQuality,
		OutputFormat:           DefaultOutputFormat,
		HTTPClient:             api.srv.Client(),
		Logger:                 discardLogger(),
	}
}

func b64Body(data string) string {
	return fmt.Sprintf(`{"data":[{"b64_json":%q}]}`, base64.StdEncoding.EncodeToString([]byte(data)))
}

func toolResultBody(data string) string {
	return fmt.Sprintf(`{"output":[{"type":"message"},{"type":"image_generation_call","result":%q}]}`,
		base64.StdEncoding.EncodeToString([]byte(data)))
}

func newOrchestrator(b *Backend) *stylegen.Orchestrator {
	return stylegen.New(
		stylegen.WithLogger(discardLogger()),
		stylegen.WithBackend(b),
		stylegen.WithTextQueue("local"),
		stylegen.WithImageQueue("openai"),
	)
}

func styleRequest(t *testing.T, refs int) *stylegen.GenerationRequest {
	req := &stylegen.GenerationRequest{
		SourceImageURL: stylegen.DataURI(testPNG(t)),
		Book: stylegen.BookContext{
			Title:    "Neuromancer",
			Author:   "William Gibson",
			Synopsis: strings.Repeat("The sky above the port was the color of television. ", 20),
		},
	}
	for i := 0; i < refs; i++ {
		req.ReferenceImageURLs = append(req.ReferenceImageURLs,
			stylegen.DataURI(stylegen.NewEncodedImage([]byte{byte(i)}, stylegen.MIMETypeJPEG)))
	}
	return req
}

func decodeResult(t *testing.T, ref string) string {
	t.Helper()
	img, err := stylegen.ParseDataURI(ref)
	if err != nil {
		t.Fatalf("result is not a data URI: %v", err)
	}
	return string(img.Bytes())
}

func TestBackend_Plan(t *testing.T) {
	source := stylegen.NewEncodedImage([]byte("src"), stylegen.MIMETypePNG)

	tests := []struct {
		name   string
		cfg    Config
		job    *stylegen.Job
		want   []string
		guards []bool
	}{
		{
			name: "no api key",
			cfg:  Config{},
			job:  &stylegen.Job{Mode: stylegen.ModeStyleTransfer, Source: &source},
		},
		{
			name: "style transfer without source",
			cfg:  Config{APIKey: "k"},
			job:  &stylegen.Job{Mode: stylegen.ModeStyleTransfer},
		},
		{
			name: "style transfer",
			cfg:  Config{APIKey: "k", FallbackResponseModels: []string{"gpt-4o-mini", "gpt-4.1-nano", " "}},
			job:  &stylegen.Job{Mode: stylegen.ModeStyleTransfer, Source: &source},
			want: []string{
				"openai/images-edits@gpt-image-1.5",
				"openai/responses-tool@gpt-4.1-nano",
				"openai/responses-tool@gpt-4o-mini",
			},
			guards: []bool{false, false, false},
		},
		{
			name: "style transfer with legacy fallback",
			cfg:  Config{APIKey: "k", LegacyFallback: true, FallbackResponseModels: []string{}},
			job:  &stylegen.Job{Mode: stylegen.ModeStyleTransfer, Source: &source},
			want: []string{
				"openai/images-edits@gpt-image-1.5",
				"openai/images-edits-legacy@dall-e-2",
				"openai/responses-tool@gpt-4.1-nano",
			},
			guards: []bool{false, true, false},
		},
		{
			name: "legacy fallback is pointless when already on the legacy model",
			cfg:  Config{APIKey: "k", ImageModel: "dall-e-2", LegacyFallback: true, FallbackResponseModels: []string{}},
			job:  &stylegen.Job{Mode: stylegen.ModeStyleTransfer, Source: &source},
			want: []string{
				"openai/images-edits@dall-e-2",
				"openai/responses-tool@gpt-4.1-nano",
			},
			guards: []bool{false, false},
		},
		{
			name: "text to image",
			cfg:  Config{APIKey: "k", FallbackResponseModels: []string{"gpt-4o"}},
			job:  &stylegen.Job{Mode: stylegen.ModeTextToImage},
			want: []string{
				"openai/images-generations@gpt-image-1.5",
				"openai/responses-tool@gpt-4.1-nano",
				"openai/responses-tool@gpt-4o",
			},
			guards: []bool{false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := New(tt.cfg).Plan(tt.job)

			var got []string
			var guards []bool
			for _, a := range plan {
				got = append(got, a.String())
				guards = append(guards, a.When != nil)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("plan = %v, want %v", got, tt.want)
			}
			if !reflect.DeepEqual(guards, tt.guards) {
				t.Errorf("guards = %v, want %v", guards, tt.guards)
			}
		})
	}
}

func TestRequiresLegacyModel(t *testing.T) {
	b := New(Config{APIKey: "k", LegacyFallback: true})
	demand := `{"error":{"message":"Invalid value: 'gpt-image-1.5'. Value must be 'dall-e-2'.","param":"model"}}`

	tests := []struct {
		name string
		prev *stylegen.AttemptError
		want bool
	}{
		{"nothing failed", nil, false},
		{"edit demanded the legacy model", &stylegen.AttemptError{Pathway: PathwayEdits, Class: stylegen.ClassUnsupportedParameter, Body: demand}, true},
		{"other pathway", &stylegen.AttemptError{Pathway: PathwayResponses, Class: stylegen.ClassUnsupportedParameter, Body: demand}, false},
		{"soft failure", &stylegen.AttemptError{Pathway: PathwayEdits, Class: stylegen.ClassSoftFailure, Body: demand}, false},
		{"different model demanded", &stylegen.AttemptError{Pathway: PathwayEdits, Class: stylegen.ClassUnsupportedParameter,
			Body: `{"error":{"message":"Value must be 'gpt-image-1'.","param":"model"}}`}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.requiresLegacyModel(tt.prev); got != tt.want {
				t.Errorf("requiresLegacyModel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEdit_QualityRejectedOnceThenOmitted(t *testing.T) {
	api := newFakeAPI(t)
	api.EditFunc = func(call editCall) (int, string) {
		if _, ok := call.fields["quality"]; ok {
			return http.StatusBadRequest, `{"error":{"message":"Unknown parameter: 'quality'.","type":"invalid_request_error","param":"quality","code":"unknown_parameter"}}`
		}
		return http.StatusOK, b64Body("edited")
	}

	got, err := newOrchestrator(New(api.config())).StyleExistingImage(context.Background(), styleRequest(t, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decodeResult(t, got) != "edited" {
		t.Errorf("unexpected result image")
	}

	calls := api.editCalls()
	if len(calls) != 2 {
		t.Fatalf("edit calls = %d, want 2", len(calls))
	}
	if _, ok := calls[0].fields["quality"]; !ok {
		t.Error("first call should send quality")
	}
	last := calls[1]
	if _, ok := last.fields["quality"]; ok {
		t.Error("final call must omit quality")
	}
	for _, required := range []string{"model", "prompt", "size", "output_format"} {
		if last.fields[required] == "" {
			t.Errorf("final call lost %q", required)
		}
	}
	if last.imageField != "image[]" || last.images != 1+maxEditReferences {
		t.Errorf("images = %d in %q, want %d in image[]", last.images, last.imageField, 1+maxEditReferences)
	}
	if len(api.responseCalls()) != 0 {
		t.Error("tool strategy should not run after a successful edit")
	}
}

func TestEdit_LegacyDowngrade(t *testing.T) {
	api := newFakeAPI(t)
	api.EditFunc = func(call editCall) (int, string) {
		if call.fields["model"] != "dall-e-2" {
			return http.StatusBadRequest, `{"error":{"message":"Invalid value: 'gpt-image-1.5'. Value must be 'dall-e-2'.","type":"invalid_request_error","param":"model"}}`
		}
		return http.StatusOK, b64Body("legacy")
	}

	cfg := api.config()
	cfg.LegacyFallback = true

	got, err := newOrchestrator(New(cfg)).StyleExistingImage(context.Background(), styleRequest(t, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decodeResult(t, got) != "legacy" {
		t.Errorf("expected the legacy edit result")
	}

	calls := api.editCalls()
	if len(calls) != 2 {
		t.Fatalf("edit calls = %d, want 2", len(calls))
	}
	legacy := calls[1]
	if legacy.imageField != "image" || legacy.images != 1 {
		t.Errorf("legacy call sent %d images in %q, want 1 in image", legacy.images, legacy.imageField)
	}
	if legacy.imageTypes[0] != stylegen.MIMETypePNG {
		t.Errorf("legacy image content type = %q", legacy.imageTypes[0])
	}
	if _, err := png.Decode(bytes.NewReader(legacy.firstImage)); err != nil {
		t.Errorf("legacy image is not a png: %v", err)
	}
	for _, dropped := range []string{"quality", "output_format"} {
		if _, ok := legacy.fields[dropped]; ok {
			t.Errorf("legacy call should not send %q", dropped)
		}
	}
	if n := len(legacy.fields["prompt"]); n > stylegen.CompactPromptMaxBytes {
		t.Errorf("legacy prompt is %d bytes, max %d", n, stylegen.CompactPromptMaxBytes)
	}
}

func TestEdit_LegacyNotDemandedGoesToTools(t *testing.T) {
	api := newFakeAPI(t)
	api.EditFunc = func(call editCall) (int, string) {
		return http.StatusInternalServerError, `{"error":{"message":"server error"}}`
	}
	api.ResponsesFunc = func(req map[string]any) (int, string) {
		return http.StatusOK, toolResultBody("tool")
	}

	cfg := api.config()
	cfg.LegacyFallback = true

	got, err := newOrchestrator(New(cfg)).StyleExistingImage(context.Background(), styleRequest(t, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decodeResult(t, got) != "tool" {
		t.Error("expected the tool result")
	}
	if n := len(api.editCalls()); n != 1 {
		t.Errorf("edit calls = %d, want 1 (no legacy downgrade)", n)
	}
}

func TestEdit_AuthFailureSkipsTools(t *testing.T) {
	api := newFakeAPI(t)
	api.EditFunc = func(call editCall) (int, string) {
		return http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`
	}
	api.ResponsesFunc = func(req map[string]any) (int, string) {
		return http.StatusOK, toolResultBody("tool")
	}

	req := styleRequest(t, 0)
	got, err := newOrchestrator(New(api.config())).StyleExistingImage(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != req.SourceImageURL {
		t.Error("an auth failure should degrade to the source image")
	}
	if n := len(api.responseCalls()); n != 0 {
		t.Errorf("responses called %d times after a 401", n)
	}
}

func TestRespond_AuthFailureEndsToolStrategy(t *testing.T) {
	api := newFakeAPI(t)
	api.EditFunc = func(call editCall) (int, string) {
		return http.StatusInternalServerError, `{"error":{"message":"upstream error"}}`
	}
	api.ResponsesFunc = func(req map[string]any) (int, string) {
		return http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`
	}

	req := styleRequest(t, 0)
	got, err := newOrchestrator(New(api.config())).StyleExistingImage(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != req.SourceImageURL {
		t.Error("an auth failure should degrade to the source image")
	}
	if n := len(api.editCalls()); n != 1 {
		t.Errorf("edits calls = %d, want 1", n)
	}
	if n := len(api.responseCalls()); n != 1 {
		t.Errorf("responses calls = %d, want 1 after a 401", n)
	}
}

func TestRespond_VerificationMovesToNextModel(t *testing.T) {
	api := newFakeAPI(t)
	api.EditFunc = func(call editCall) (int, string) {
		return http.StatusBadRequest, `{"error":{"message":"Invalid image"}}`
	}
	api.ResponsesFunc = func(req map[string]any) (int, string) {
		if req["model"] == "gpt-4.1-nano" {
			return http.StatusForbidden, `{"error":{"message":"Your organization must be verified to use the model ` + "`gpt-image-1.5`" + `."}}`
		}
		return http.StatusOK, toolResultBody("from-" + req["model"].(string))
	}

	got, err := newOrchestrator(New(api.config())).StyleExistingImage(context.Background(), styleRequest(t, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r := decodeResult(t, got); r != "from-gpt-4o-mini" {
		t.Errorf("result = %q, want the first fallback model's image", r)
	}

	calls := api.responseCalls()
	if len(calls) != 2 {
		t.Fatalf("responses calls = %d, want 2", len(calls))
	}

	req := calls[1]
	if req["tool_choice"].(map[string]any)["type"] != "image_generation" {
		t.Errorf("tool_choice = %v", req["tool_choice"])
	}
	tool := req["tools"].([]any)[0].(map[string]any)
	if tool["type"] != "image_generation" || tool["model"] != DefaultImageModel {
		t.Errorf("tool = %v", tool)
	}
	content := req["input"].([]any)[0].(map[string]any)["content"].([]any)
	if len(content) != 2+maxEditReferences {
		t.Fatalf("content items = %d, want %d", len(content), 2+maxEditReferences)
	}
	text := content[0].(map[string]any)["text"].(string)
	if len(text) > stylegen.ReferencePromptMaxBytes || !strings.Contains(text, "Neuromancer") {
		t.Errorf("unexpected reference prompt (%d bytes)", len(text))
	}
	source := content[1].(map[string]any)["image_url"].(string)
	if !strings.HasPrefix(source, "data:image/png;base64,") {
		t.Errorf("source should be sent inline, got %.40q", source)
	}
}

func TestRespond_ToolParameterFromMessage(t *testing.T) {
	api := newFakeAPI(t)
	api.EditFunc = func(call editCall) (int, string) {
		return http.StatusInternalServerError, ""
	}
	api.ResponsesFunc = func(req map[string]any) (int, string) {
		tool := req["tools"].([]any)[0].(map[string]any)
		if _, ok := tool["input_fidelity"]; ok {
			return http.StatusBadRequest, `{"error":{"message":"Unknown parameter: 'tools[0].input_fidelity'.","type":"invalid_request_error","param":null}}`
		}
		return http.StatusOK, toolResultBody("ok")
	}

	cfg := api.config()
	cfg.InputFidelity = "high"
	cfg.Action = "edit"

	if _, err := newOrchestrator(New(cfg)).StyleExistingImage(context.Background(), styleRequest(t, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := api.responseCalls()
	if len(calls) != 2 {
		t.Fatalf("responses calls = %d, want 2", len(calls))
	}
	tool := calls[1]["tools"].([]any)[0].(map[string]any)
	if _, ok := tool["input_fidelity"]; ok {
		t.Error("input_fidelity should be stripped")
	}
	if tool["action"] != "edit" || tool["quality"] != DefaultQuality {
		t.Errorf("other tool fields should survive: %v", tool)
	}
}

func TestRespond_UnidentifiedRejectionMovesOn(t *testing.T) {
	api := newFakeAPI(t)
	api.EditFunc = func(call editCall) (int, string) {
		return http.StatusInternalServerError, ""
	}
	api.ResponsesFunc = func(req map[string]any) (int, string) {
		return http.StatusBadRequest, `{"error":{"message":"Invalid request."}}`
	}

	cfg := api.config()
	cfg.FallbackResponseModels = []string{"gpt-4o"}

	req := styleRequest(t, 0)
	got, err := newOrchestrator(New(cfg)).StyleExistingImage(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != req.SourceImageURL {
		t.Error("expected degrade to the source image")
	}
	if n := len(api.responseCalls()); n != 2 {
		t.Errorf("responses calls = %d, want one per model", n)
	}
}

func TestGenerate_StripsQualityAndDownloadsURL(t *testing.T) {
	api := newFakeAPI(t)
	api.files["/files/out.png"] = []byte("downloaded")
	api.GenerationFunc = func(req map[string]any) (int, string) {
		if _, ok := req["quality"]; ok {
			return http.StatusBadRequest, `{"error":{"message":"Unknown parameter: 'quality'.","type":"invalid_request_error","param":"quality","code":"unknown_parameter"}}`
		}
		return http.StatusOK, fmt.Sprintf(`{"created":1,"data":[{"url":%q}]}`, api.srv.URL+"/files/out.png")
	}

	got, err := newOrchestrator(New(api.config())).GenerateFromPrompt(context.Background(), &stylegen.GenerationRequest{
		UserPrompt: "a neon street market in the rain",
		Book:       stylegen.BookContext{Title: "Neuromancer", Author: "William Gibson"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decodeResult(t, got) != "downloaded" {
		t.Error("expected the downloaded image")
	}

	calls := api.generationCalls()
	if len(calls) != 2 {
		t.Fatalf("generation calls = %d, want 2", len(calls))
	}
	final := calls[1]
	if _, ok := final["quality"]; ok {
		t.Error("final request must omit quality")
	}
	if final["model"] != DefaultImageModel || final["prompt"] == "" {
		t.Errorf("required fields missing: %v", final)
	}
	if final["response_format"] != "b64_json" || final["size"] != DefaultSize {
		t.Errorf("optional fields lost: %v", final)
	}
}

func TestGenerate_FallsBackToTextOnlyTool(t *testing.T) {
	api := newFakeAPI(t)
	api.GenerationFunc = func(req map[string]any) (int, string) {
		return http.StatusForbidden, `{"error":{"message":"Your organization must be verified to use the model.","type":"invalid_request_error"}}`
	}
	api.ResponsesFunc = func(req map[string]any) (int, string) {
		return http.StatusOK, toolResultBody("tool")
	}

	got, err := newOrchestrator(New(api.config())).GenerateFromPrompt(context.Background(), &stylegen.GenerationRequest{
		UserPrompt: "a neon street market",
		Book:       stylegen.BookContext{Title: "Neuromancer"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decodeResult(t, got) != "tool" {
		t.Error("expected the tool result")
	}

	content := api.responseCalls()[0]["input"].([]any)[0].(map[string]any)["content"].([]any)
	if len(content) != 1 || content[0].(map[string]any)["type"] != "input_text" {
		t.Errorf("text-to-image tool call should send text only: %v", content)
	}
}

func TestGenerate_AuthFailureIsExhausted(t *testing.T) {
	api := newFakeAPI(t)
	api.GenerationFunc = func(req map[string]any) (int, string) {
		return http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided: sk-test.","type":"invalid_request_error","code":"invalid_api_key"}}`
	}

	_, err := newOrchestrator(New(api.config())).GenerateFromPrompt(context.Background(), &stylegen.GenerationRequest{
		UserPrompt: "anything",
	})
	if !stylegen.IsExhausted(err) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if !stylegen.IsAuthFailure(err) {
		t.Errorf("exhaustion should carry the auth failure: %v", err)
	}

	var exErr *stylegen.ExhaustedError
	errors.As(err, &exErr)
	if len(exErr.Failures) != 1 || exErr.Failures[0].Pathway != PathwayGenerations {
		t.Errorf("failures = %v", exErr.Failures)
	}
	if n := len(api.responseCalls()); n != 0 {
		t.Errorf("responses called %d times after a 401", n)
	}
}
