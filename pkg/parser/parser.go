package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/sitedocs/internal/models"
)

// ParseError marks a document as unreadable. Parsing is the one pipeline
// step whose failure is fatal for the document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type ParserConfig struct {
	BaseURL string // partition service URL for PDFs
	Timeout time.Duration
}

// Parser extracts text and structural elements from document files. PDF
// partitioning is delegated to an external unstructured-style HTTP service;
// HTML exports and plain text are handled locally.
type Parser struct {
	config ParserConfig
	client *http.Client
}

func NewWithConfig(config ParserConfig) (*Parser, error) {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8000"
	}

	return &Parser{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Parse reads the file at path and returns its full text plus elements.
// Unreadable, corrupt or unsupported files fail with a *ParseError.
func (p *Parser) Parse(ctx context.Context, path string) (*models.ParsedDocument, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return p.parsePDF(ctx, path)
	case ".html", ".htm":
		return p.parseHTML(path)
	case ".txt":
		return p.parseText(path)
	}
	return nil, &ParseError{Path: path, Err: fmt.Errorf("unsupported file type %q", filepath.Ext(path))}
}

type partitionElement struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		PageNumber int `json:"page_number"`
	} `json:"metadata"`
}

func (p *Parser) parsePDF(ctx context.Context, path string) (*models.ParsedDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	url := strings.TrimSuffix(p.config.BaseURL, "/") + "/general/v0/general"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("partition service returned status %d", resp.StatusCode)}
	}

	var raw []partitionElement
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("decoding partition response: %w", err)}
	}

	doc := &models.ParsedDocument{}
	var texts []string
	for _, el := range raw {
		if strings.TrimSpace(el.Text) == "" {
			continue
		}
		doc.Elements = append(doc.Elements, models.Element{
			Type: el.Type,
			Text: el.Text,
			Page: el.Metadata.PageNumber,
		})
		texts = append(texts, el.Text)
	}
	doc.FullText = strings.Join(texts, "\n\n")
	return doc, nil
}

func (p *Parser) parseHTML(path string) (*models.ParsedDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer file.Close()

	htmlDoc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	doc := &models.ParsedDocument{}
	if title := strings.TrimSpace(htmlDoc.Find("title").Text()); title != "" {
		doc.Elements = append(doc.Elements, models.Element{Type: "Title", Text: title})
	}

	content := extractMainContent(htmlDoc)
	htmlDoc.Find("p, li, td, th, h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		text := cleanText(sel.Text())
		if text == "" {
			return
		}
		elType := "NarrativeText"
		if goquery.NodeName(sel) == "td" || goquery.NodeName(sel) == "th" {
			elType = "Table"
		}
		doc.Elements = append(doc.Elements, models.Element{Type: elType, Text: text})
	})

	doc.FullText = content
	if doc.FullText == "" {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("no text content found")}
	}
	return doc, nil
}

func (p *Parser) parseText(path string) (*models.ParsedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	text := string(data)
	doc := &models.ParsedDocument{FullText: text}
	if strings.TrimSpace(text) != "" {
		doc.Elements = append(doc.Elements, models.Element{Type: "NarrativeText", Text: text})
	}
	return doc, nil
}

func extractMainContent(doc *goquery.Document) string {
	// Prefer a dedicated content area, fall back to body
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	if content == "" {
		content = doc.Find("body").Text()
	}

	return cleanText(content)
}

func cleanText(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
