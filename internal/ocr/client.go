package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client talks to the tesseract recognition service over HTTP. Images
// are posted as base64 PNG; the service returns plain recognized text.
type Client struct {
	baseURL    string
	languages  string
	httpClient *http.Client
	logger     *logrus.Logger
}

type recognizeRequest struct {
	Image     string `json:"image"`
	Format    string `json:"format"`
	Languages string `json:"languages"`
}

type recognizeResponse struct {
	Text string `json:"text"`
}

// NewClient builds an OCR client. languages follows tesseract syntax,
// e.g. "spa+eng".
func NewClient(baseURL, languages string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		languages:  languages,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Recognize submits one PNG screenshot and returns the recognized text.
func (c *Client) Recognize(ctx context.Context, png []byte) (string, error) {
	payload := recognizeRequest{
		Image:     base64.StdEncoding.EncodeToString(png),
		Format:    "png",
		Languages: c.languages,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recognize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr service status %d", resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}

	c.logger.WithField("text_length", len(out.Text)).Debug("OCR text recognized")
	return out.Text, nil
}

// RecognizeAll runs every screenshot through the service and joins the
// texts. Region captures supplement the full page capture; recognizing
// both raises recall on low contrast portals.
func (c *Client) RecognizeAll(ctx context.Context, shots ...[]byte) (string, error) {
	var texts []string
	for _, shot := range shots {
		if len(shot) == 0 {
			continue
		}
		text, err := c.Recognize(ctx, shot)
		if err != nil {
			return "", err
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\n"), nil
}
