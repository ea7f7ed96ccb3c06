// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const (
	imagePrompt    = "Analyze this image in detail. If there is text, read it. Describe what you see."
	documentPrompt = "Extract and analyze this document. Summarize the content and identify key points for study."
)

// Upload is a file sent for analysis.
type Upload struct {
	Name        string
	MimeType    string
	Description string
	Size        int64
	Body        io.Reader
}

// Analysis is the backend's reading of an uploaded file.
type Analysis struct {
	Analysis        string `json:"analysis"`
	Text            string `json:"text,omitempty"`
	MimeType        string `json:"mimeType,omitempty"`
	FileType        string `json:"fileType,omitempty"`
	FileName        string `json:"fileName,omitempty"`
	FileSize        int64  `json:"fileSize,omitempty"`
	ExtractedLength int    `json:"extractedLength,omitempty"`
}

// AnalyzeImage posts an image to /api/analyze-image.
func (c *Client) AnalyzeImage(ctx context.Context, up Upload) (Analysis, error) {
	return c.analyze(ctx, "image analysis", "/api/analyze-image", "image", imagePrompt, up)
}

// AnalyzeDocument posts a document to /api/analyze-document.
func (c *Client) AnalyzeDocument(ctx context.Context, up Upload) (Analysis, error) {
	return c.analyze(ctx, "document analysis", "/api/analyze-document", "document", documentPrompt, up)
}

func (c *Client) analyze(ctx context.Context, op, path, field, prompt string, up Upload) (Analysis, error) {
	if up.Body == nil {
		return Analysis{}, &Error{Type: ErrTypeUnknown, Message: op + ": no file content"}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, up.Name))
	mimeType := up.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return Analysis{}, &Error{Type: ErrTypeUnknown, Message: op + ": failed to build form", Cause: err}
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return Analysis{}, &Error{Type: ErrTypeUnknown, Message: op + ": failed to read file", Cause: err}
	}
	if err := w.WriteField("prompt", prompt); err != nil {
		return Analysis{}, &Error{Type: ErrTypeUnknown, Message: op + ": failed to build form", Cause: err}
	}
	if strings.TrimSpace(up.Description) != "" {
		if err := w.WriteField("description", up.Description); err != nil {
			return Analysis{}, &Error{Type: ErrTypeUnknown, Message: op + ": failed to build form", Cause: err}
		}
	}
	if err := w.Close(); err != nil {
		return Analysis{}, &Error{Type: ErrTypeUnknown, Message: op + ": failed to build form", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ChatTimeout)
	defer cancel()

	raw, err := c.do(ctx, op, http.MethodPost, path, w.FormDataContentType(), &buf)
	if err != nil {
		return Analysis{}, err
	}

	var out Analysis
	if err := json.Unmarshal(raw, &out); err != nil {
		return Analysis{}, &Error{Type: ErrTypeMalformedResponse, Message: op + ": unexpected response body", Cause: err}
	}
	if out.MimeType == "" {
		out.MimeType = out.FileType
	}
	if out.FileName == "" {
		out.FileName = up.Name
	}
	if out.Text == "" {
		out.Text = out.Analysis
	}
	return out, nil
}
