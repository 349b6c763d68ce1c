// Package integration handles external service interactions
package integration

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	// DefaultPortalURL is the outage search page of the utility portal
	DefaultPortalURL = "https://khamooshi.maztozi.ir/"
	// DefaultUserAgent mimics a desktop browser; the portal rejects bare clients
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"

	searchButtonID    = "ContentPlaceHolder1_btnSearchOutage"
	searchButtonLabel = "جستجو"
	resultsTableID    = "ContentPlaceHolder1_grdOutages"
)

// formField is a search field located by element id, with the name used
// when the loaded form does not declare one.
type formField struct {
	id       string
	fallback string
}

var (
	modeField     = formField{"ContentPlaceHolder1_rbIsAddress", "ctl00$ContentPlaceHolder1$rbIsAddress"}
	areaField     = formField{"ContentPlaceHolder1_ddlArea", "ctl00$ContentPlaceHolder1$ddlArea"}
	dateFromField = formField{"ContentPlaceHolder1_txtPDateFrom", "ctl00$ContentPlaceHolder1$txtPDateFrom"}
	dateToField   = formField{"ContentPlaceHolder1_txtPDateTo", "ctl00$ContentPlaceHolder1$txtPDateTo"}
)

// Table is the parsed results grid of the portal
type Table struct {
	Header []string
	Rows   [][]string
}

// PortalOptions configures a PortalClient
type PortalOptions struct {
	BaseURL     string
	Timeout     time.Duration // connect and response-header timeout
	MaxDuration time.Duration // budget for a whole request including the body
	UserAgent   string
}

// PortalClient performs the search-form round trip against the outage portal.
// A client keeps the portal session in its cookie jar and is meant to be
// created for a single import run.
type PortalClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPortalClient creates a new portal client
func NewPortalClient(opts PortalOptions, logger *zap.Logger) (*PortalClient, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultPortalURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.Timeout}).DialContext,
		TLSHandshakeTimeout:   opts.Timeout,
		ResponseHeaderTimeout: opts.Timeout,
		IdleConnTimeout:       90 * time.Second,
	}

	return &PortalClient{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   opts.MaxDuration,
		},
		logger: logger,
	}, nil
}

// Close releases idle connections held by the client
func (c *PortalClient) Close() {
	c.httpClient.CloseIdleConnections()
}

// FetchOutageRows searches the portal for outages of one area between two
// Jalali dates and returns the result grid. A page without a results grid
// yields an empty Table.
func (c *PortalClient) FetchOutageRows(ctx context.Context, dateFrom, dateTo, areaCode string) (Table, error) {
	c.logger.Debug("loading portal search page", zap.String("url", c.baseURL), zap.String("area", areaCode))
	page, pageURL, err := c.do(ctx, "load search page", http.MethodGet, c.baseURL, nil)
	if err != nil {
		return Table{}, err
	}

	form, button, err := findSearchForm(page)
	if err != nil {
		return Table{}, err
	}

	values := formValues(form)
	if name, ok := button.Attr("name"); ok && name != "" {
		values.Set(name, button.AttrOr("value", searchButtonLabel))
	}

	modeName := resolveFieldName(page, modeField)
	modeValue := "on"
	if v := page.Find("#" + modeField.id).AttrOr("value", ""); v != "" {
		modeValue = v
	}
	values.Set(modeName, modeValue)
	values.Set(resolveFieldName(page, areaField), areaCode)
	values.Set(resolveFieldName(page, dateFromField), dateFrom)
	values.Set(resolveFieldName(page, dateToField), dateTo)

	action, err := resolveAction(pageURL, form.AttrOr("action", ""))
	if err != nil {
		return Table{}, &FetchError{Op: "resolve form action", URL: pageURL.String(), Err: err}
	}

	c.logger.Debug("submitting portal search form",
		zap.String("url", action),
		zap.String("area", areaCode),
		zap.String("date_from", dateFrom),
		zap.String("date_to", dateTo),
		zap.Int("fields", len(values)),
	)
	result, _, err := c.do(ctx, "submit search form", http.MethodPost, action, values)
	if err != nil {
		return Table{}, err
	}

	table := parseResultsTable(result)
	c.logger.Debug("parsed portal results",
		zap.String("area", areaCode),
		zap.Int("header_cells", len(table.Header)),
		zap.Int("rows", len(table.Rows)),
	)
	return table, nil
}

// do sends a request and parses the HTML response. It returns the final
// URL after redirects so relative form actions resolve correctly.
func (c *PortalClient) do(ctx context.Context, op, method, target string, form url.Values) (*goquery.Document, *url.URL, error) {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, nil, &FetchError{Op: op, URL: target, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,fa;q=0.8")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &FetchError{Op: op, URL: target, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, nil, &FetchError{Op: op, URL: target, Err: fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status)}
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, nil, &FetchError{Op: op, URL: target, Err: fmt.Errorf("failed to parse the webpage: %w", err)}
	}
	return doc, res.Request.URL, nil
}

// findSearchForm locates the search button by id, falling back to its
// visible label, and returns its enclosing form.
func findSearchForm(doc *goquery.Document) (*goquery.Selection, *goquery.Selection, error) {
	button := doc.Find("input#" + searchButtonID).First()
	if button.Length() == 0 {
		button = doc.Find(`input[type="submit"], input[type="button"], button`).FilterFunction(func(_ int, s *goquery.Selection) bool {
			label := s.AttrOr("value", "")
			if goquery.NodeName(s) == "button" {
				label = s.Text()
			}
			return collapseSpaces(label) == searchButtonLabel
		}).First()
	}
	if button.Length() == 0 {
		return nil, nil, ErrFormNotFound
	}

	form := button.Closest("form")
	if form.Length() == 0 {
		return nil, nil, ErrFormNotFound
	}
	return form, button, nil
}

// formValues collects the successful controls of a form. Hidden fields,
// which carry the portal's session and anti-forgery state, are copied
// verbatim. Submit buttons are left out; the caller adds the one it clicks.
func formValues(form *goquery.Selection) url.Values {
	values := url.Values{}

	form.Find("input").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			return
		}
		switch strings.ToLower(s.AttrOr("type", "text")) {
		case "submit", "button", "image", "reset", "file":
			return
		case "radio", "checkbox":
			if _, checked := s.Attr("checked"); !checked {
				return
			}
			values.Set(name, s.AttrOr("value", "on"))
		default:
			values.Set(name, s.AttrOr("value", ""))
		}
	})

	form.Find("select").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			return
		}
		option := s.Find("option[selected]").First()
		if option.Length() == 0 {
			option = s.Find("option").First()
		}
		if option.Length() == 0 {
			return
		}
		values.Set(name, option.AttrOr("value", strings.TrimSpace(option.Text())))
	})

	form.Find("textarea").Each(func(_ int, s *goquery.Selection) {
		if name := s.AttrOr("name", ""); name != "" {
			values.Set(name, s.Text())
		}
	})

	return values
}

func resolveFieldName(doc *goquery.Document, f formField) string {
	if name := doc.Find("#" + f.id).First().AttrOr("name", ""); name != "" {
		return name
	}
	return f.fallback
}

func resolveAction(pageURL *url.URL, action string) (string, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return pageURL.String(), nil
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", err
	}
	return pageURL.ResolveReference(ref).String(), nil
}

// parseResultsTable turns the results grid into text cells. The first row
// with header cells becomes the header; every other row with content is a
// data row.
func parseResultsTable(doc *goquery.Document) Table {
	var table Table

	grid := doc.Find("#" + resultsTableID).First()
	if grid.Length() == 0 {
		return table
	}

	grid.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cellSel := tr.ChildrenFiltered("th, td")
		hasHeader := tr.ChildrenFiltered("th").Length() > 0

		cells := make([]string, 0, cellSel.Length())
		blank := true
		cellSel.Each(func(_ int, td *goquery.Selection) {
			text := collapseSpaces(td.Text())
			if text != "" {
				blank = false
			}
			cells = append(cells, text)
		})
		if len(cells) == 0 || blank {
			return
		}

		if hasHeader && len(table.Header) == 0 {
			table.Header = cells
			return
		}
		table.Rows = append(table.Rows, cells)
	})

	return table
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
