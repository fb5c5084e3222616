package upload_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/micro-nova/devlog-go/internal/models"
	"github.com/micro-nova/devlog-go/internal/upload"
)

type fakeSlack struct {
	uploaded   string
	shareAuth  string
	postAuth   string
	postedBody map[string]any
	failUpload bool
}

func (f *fakeSlack) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/files.upload", func(w http.ResponseWriter, r *http.Request) {
		if f.failUpload {
			_, _ = io.WriteString(w, `{"ok":false,"error":"invalid_auth"}`)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("files.upload: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		f.uploaded = string(data)
		if r.FormValue("token") != "xoxp-file" {
			t.Errorf("files.upload token = %q", r.FormValue("token"))
		}
		_, _ = io.WriteString(w, `{"ok":true,"file":{"id":"F123"}}`)
	})
	mux.HandleFunc("/files.sharedPublicURL", func(w http.ResponseWriter, r *http.Request) {
		f.shareAuth = r.Header.Get("Authorization")
		if r.URL.Query().Get("file") != "F123" {
			t.Errorf("sharedPublicURL file = %q", r.URL.Query().Get("file"))
		}
		_, _ = io.WriteString(w, `{"ok":true,"file":{"id":"F123","permalink_public":"https://slack-files.com/T1-F123-s3cr3t"}}`)
	})
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		f.postAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&f.postedBody)
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	return mux
}

func TestSlackUpload(t *testing.T) {
	log := newTestLog(t)
	if _, err := log.Append(context.Background(), "crash report"); err != nil {
		t.Fatal(err)
	}
	fake := &fakeSlack{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	relay := upload.NewSlackRelay(log, srv.Client(), upload.SlackConfig{
		APIBase:   srv.URL,
		Token:     "xoxb-bot",
		FileToken: "xoxp-file",
		Channel:   "#devlogs",
	})
	res := relay.Upload(context.Background())
	if !res.OK() {
		t.Fatalf("result = %+v, want success", res)
	}
	if fake.uploaded != "crash report\n" {
		t.Errorf("uploaded = %q", fake.uploaded)
	}
	if fake.shareAuth != "Bearer xoxp-file" || fake.postAuth != "Bearer xoxb-bot" {
		t.Errorf("auth headers = %q / %q", fake.shareAuth, fake.postAuth)
	}
	if fake.postedBody["channel"] != "#devlogs" {
		t.Errorf("channel = %v", fake.postedBody["channel"])
	}
	raw, _ := json.Marshal(fake.postedBody)
	if want := "https://files.slack.com/files-pri/T1-F123/log.txt?pub_secret=s3cr3t"; !strings.Contains(string(raw), want) {
		t.Errorf("message %s does not link %s", raw, want)
	}
}

func TestSlackRejected(t *testing.T) {
	log := newTestLog(t)
	if _, err := log.Append(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	fake := &fakeSlack{failUpload: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	relay := upload.NewSlackRelay(log, srv.Client(), upload.SlackConfig{
		APIBase: srv.URL, Token: "a", FileToken: "b", Channel: "c",
	})
	res := relay.Upload(context.Background())
	if res.Error != models.ErrServerRejected || res.Detail != "invalid_auth" {
		t.Fatalf("result = %+v, want server-rejected invalid_auth", res)
	}
}

func TestSlackNotConfigured(t *testing.T) {
	log := newTestLog(t)
	res := upload.NewSlackRelay(log, nil, upload.SlackConfig{}).Upload(context.Background())
	if res.Error != models.ErrMalformedEndpoint {
		t.Fatalf("result = %+v, want malformed-endpoint", res)
	}
}
