package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/docdash/internal/client/models"
)

const documentsPath = "/api/v1/documents"

func documentPath(id string, rest ...string) string {
	p := documentsPath + "/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// UploadFile describes a file to upload. Open is called once per attempt,
// so a retried or replayed upload starts from the beginning.
type UploadFile struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

func (c *HTTPClient) ListDocuments(ctx context.Context, f models.DocumentFilter) (models.DocumentList, error) {
	query := url.Values{}
	if f.CategoryID != "" {
		query.Set("categoryId", f.CategoryID)
	}
	if len(f.CategoryIDs) > 0 {
		query.Set("categoryIds", strings.Join(f.CategoryIDs, ","))
	}
	if f.IncludeSubcategories {
		query.Set("includeSubcategories", "true")
	}
	if f.IsAICategorized != nil {
		query.Set("isAiCategorized", strconv.FormatBool(*f.IsAICategorized))
	}
	if f.MinConfidenceScore != nil {
		query.Set("minConfidenceScore", strconv.FormatFloat(*f.MinConfidenceScore, 'f', -1, 64))
	}

	var out models.DocumentList
	err := c.do(ctx, call{method: http.MethodGet, path: documentsPath, query: query, out: &out})
	return out, err
}

func (c *HTTPClient) GetDocument(ctx context.Context, id string) (models.Document, error) {
	var out models.Document
	err := c.do(ctx, call{method: http.MethodGet, path: documentPath(id), out: &out})
	return out, err
}

// UploadDocument sends f as the "file" field of a multipart form. progress
// follows the bytes handed to the transport.
func (c *HTTPClient) UploadDocument(ctx context.Context, f UploadFile, progress ProgressFunc) (models.Document, error) {
	var out models.Document
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   documentsPath + "/upload",
		body:   multipartBody(f, progress),
		out:    &out,
	})
	return out, err
}

func multipartBody(f UploadFile, progress ProgressFunc) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		if f.Open == nil {
			return nil, "", fmt.Errorf("upload %s: no content", f.Name)
		}
		src, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", f.Name, err)
		}

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			defer src.Close()
			err := writeFilePart(mw, f, newProgressReader(src, f.Size, progress))
			if err == nil {
				err = mw.Close()
			}
			pw.CloseWithError(err)
		}()
		return pr, mw.FormDataContentType(), nil
	}
}

func writeFilePart(mw *multipart.Writer, f UploadFile, r io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	mime := f.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	h.Set("Content-Type", mime)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	finishProgress(r)
	return nil
}

// DownloadDocument streams the document content into w and returns the
// number of bytes written. It is not retried: w may already hold part of
// the content when a transfer breaks.
func (c *HTTPClient) DownloadDocument(ctx context.Context, id string, w io.Writer, progress ProgressFunc) (int64, error) {
	var written int64
	noRetry := 0
	err := c.do(ctx, call{
		method:  http.MethodGet,
		path:    documentPath(id, "download"),
		retries: &noRetry,
		handle: func(resp *http.Response) error {
			r := newProgressReader(resp.Body, resp.ContentLength, progress)
			n, err := io.Copy(w, r)
			written = n
			if err != nil {
				return newNoResponseError(err)
			}
			finishProgress(r)
			return nil
		},
	})
	return written, err
}

func (c *HTTPClient) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: documentPath(id)})
}

// CategorizeDocument starts a remote categorization job.
func (c *HTTPClient) CategorizeDocument(ctx context.Context, id string, force bool) (models.CategorizationJob, error) {
	var out models.CategorizationJob
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   documentPath(id, "categorize"),
		body:   jsonBody(map[string]bool{"forceRecategorization": force}),
		out:    &out,
	})
	return out, err
}

func (c *HTTPClient) BulkCategorize(ctx context.Context, req models.BulkCategorization) (models.CategorizationJob, error) {
	var out models.CategorizationJob
	err := c.do(ctx, call{method: http.MethodPost, path: documentsPath + "/categorize/bulk", body: jsonBody(req), out: &out})
	return out, err
}
