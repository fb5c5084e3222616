package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/micro-nova/devlog-go/internal/metrics"
	"github.com/micro-nova/devlog-go/internal/models"
)

// DefaultSlackAPI is the Slack Web API base URL.
const DefaultSlackAPI = "https://slack.com/api"

// SlackConfig holds Slack credentials. FileToken uploads and publishes the
// file; Token posts the message that links to it.
type SlackConfig struct {
	APIBase   string
	Token     string
	FileToken string
	Channel   string
	// Label names the device in the message header. Empty means the OS name.
	Label string
}

// Configured reports whether every credential is present.
func (c SlackConfig) Configured() bool {
	return c.Token != "" && c.FileToken != "" && c.Channel != ""
}

// SlackRelay uploads the log to Slack, makes it public and posts a link to
// it in a channel. The three calls count as one upload: the first failure
// ends the request.
type SlackRelay struct {
	log    LogFile
	client *http.Client
	cfg    SlackConfig
}

// NewSlackRelay creates a Slack relay. A nil client gets DefaultTimeout.
func NewSlackRelay(log LogFile, client *http.Client, cfg SlackConfig) *SlackRelay {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultSlackAPI
	}
	return &SlackRelay{log: log, client: client, cfg: cfg}
}

// slackFile is the subset of Slack's file object the relay reads.
type slackFile struct {
	ID              string `json:"id"`
	PermalinkPublic string `json:"permalink_public"`
}

type slackResponse struct {
	OK    bool      `json:"ok"`
	Error string    `json:"error"`
	File  slackFile `json:"file"`
}

// Upload runs the three Slack calls and reports a single outcome.
func (s *SlackRelay) Upload(ctx context.Context) models.UploadResult {
	start := time.Now()
	res := s.upload(ctx)
	metrics.UploadDuration.WithLabelValues("slack").Observe(time.Since(start).Seconds())
	outcome := string(res.Error)
	if res.OK() {
		outcome = string(models.UploadSuccess)
	}
	metrics.IncUpload("slack", outcome)
	return res
}

func (s *SlackRelay) upload(ctx context.Context) models.UploadResult {
	base, ok := parseEndpoint(s.cfg.APIBase)
	if !ok || !s.cfg.Configured() {
		return models.UploadFailed(models.ErrMalformedEndpoint, "slack relay is not configured")
	}
	api := strings.TrimSuffix(base.String(), "/")

	f, res, ok := openLog(ctx, s.log)
	if !ok {
		return res
	}
	defer f.Close()
	filename := filepath.Base(f.Name())

	var uploaded slackResponse
	resp, err := postFile(ctx, s.client, fileForm{
		url:    api + "/files.upload",
		field:  DefaultFieldName,
		file:   f,
		fields: map[string]string{"token": s.cfg.FileToken, "filename": filename},
	})
	if res, ok := s.decode(resp, err, &uploaded); !ok {
		return res
	}

	var shared slackResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		api+"/files.sharedPublicURL?file="+url.QueryEscape(uploaded.File.ID), nil)
	if err != nil {
		return models.UploadFailed(models.ErrMalformedEndpoint, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.FileToken)
	resp, err = s.client.Do(req)
	if res, ok := s.decode(resp, err, &shared); !ok {
		return res
	}

	link, err := privateLink(shared.File.PermalinkPublic, filename)
	if err != nil {
		return models.UploadFailed(models.ErrServerRejected, err.Error())
	}

	body, err := json.Marshal(s.message(link))
	if err != nil {
		return models.UploadFailed(models.ErrTransportFailure, err.Error())
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, api+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return models.UploadFailed(models.ErrMalformedEndpoint, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	resp, err = s.client.Do(req)
	var posted slackResponse
	if res, ok := s.decode(resp, err, &posted); !ok {
		return res
	}
	slog.Info("upload: log posted to slack", "channel", s.cfg.Channel, "file", uploaded.File.ID)
	return models.UploadOK(resp.StatusCode)
}

// decode turns one Slack call into either a parsed body or a terminal result.
func (s *SlackRelay) decode(resp *http.Response, err error, into *slackResponse) (models.UploadResult, bool) {
	if err != nil {
		slog.Warn("upload: slack transport failure", "err", err)
		return models.UploadFailed(models.ErrTransportFailure, err.Error()), false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.UploadFailed(models.ErrServerRejected, resp.Status), false
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDrain)).Decode(into); err != nil {
		return models.UploadFailed(models.ErrServerRejected, "invalid slack response: "+err.Error()), false
	}
	if !into.OK {
		slog.Warn("upload: slack rejected request", "error", into.Error)
		return models.UploadFailed(models.ErrServerRejected, into.Error), false
	}
	return models.UploadResult{}, true
}

func (s *SlackRelay) message(link string) map[string]any {
	label := s.cfg.Label
	if label == "" {
		label = strings.ToUpper(runtime.GOOS)
	}
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type":  "plain_text",
				"text":  fmt.Sprintf(":point_down: Log (%s)", label),
				"emoji": true,
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("<%s|Show logs>", link),
			},
		},
	}
	return map[string]any{
		"channel": s.cfg.Channel,
		"attachments": []map[string]any{
			{"color": "#f2c744", "blocks": blocks},
		},
	}
}

// privateLink converts a public permalink
//
//	https://slack-files.com/{team}-{file}-{secret}
//
// into a direct download link for filename.
func privateLink(permalink, filename string) (string, error) {
	rest, ok := strings.CutPrefix(permalink, "https://slack-files.com/")
	if !ok {
		return "", fmt.Errorf("unexpected public permalink %q", permalink)
	}
	parts := strings.Split(rest, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("unexpected public permalink %q", permalink)
	}
	team, file, secret := parts[0], parts[1], parts[2]
	return fmt.Sprintf("https://files.slack.com/files-pri/%s-%s/%s?pub_secret=%s",
		team, file, url.PathEscape(filename), url.QueryEscape(secret)), nil
}
