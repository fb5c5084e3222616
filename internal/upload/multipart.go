package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
)

// fileForm describes a multipart POST carrying one file attachment.
type fileForm struct {
	url    string
	field  string
	file   *os.File
	fields map[string]string
	header http.Header
}

// postFile streams form to its URL. The body is produced on a separate
// goroutine through a pipe, so the file is read while the transport sends
// and is never buffered whole. postFile does not return until that goroutine
// has exited.
func postFile(ctx context.Context, client *http.Client, form fileForm) (*http.Response, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writeForm(mw, form))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, form.url, pr)
	if err != nil {
		pr.Close()
		<-done
		return nil, err
	}
	for k, vs := range form.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	// Unblocks the writer if the transport stopped reading early.
	pr.Close()
	<-done
	return resp, err
}

func writeForm(mw *multipart.Writer, form fileForm) error {
	for k, v := range form.fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`,
		form.field, filepath.Base(form.file.Name())))
	h.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, form.file); err != nil {
		return fmt.Errorf("read %s: %w", form.file.Name(), err)
	}
	return mw.Close()
}
