package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const searchPage = `
<!DOCTYPE html>
<html>
<body>
<form method="post" action="./Default.aspx" id="form1">
	<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="vs-token" />
	<input type="hidden" name="__EVENTVALIDATION" id="__EVENTVALIDATION" value="ev-token" />
	<input type="radio" name="ctl00$Main$mode" id="ContentPlaceHolder1_rbIsAddress" value="rbIsAddress" />
	<input type="radio" name="ctl00$Main$mode" id="ContentPlaceHolder1_rbIsBill" value="rbIsBill" checked="checked" />
	<select name="ctl00$Main$ddlAreaV2" id="ContentPlaceHolder1_ddlArea">
		<option value="1" selected="selected">Area 1</option>
		<option value="3">Area 3</option>
	</select>
	<input type="text" name="ctl00$Main$from" id="ContentPlaceHolder1_txtPDateFrom" value="" />
	<input type="text" name="ctl00$Main$to" id="ContentPlaceHolder1_txtPDateTo" value="" />
	<input type="submit" name="ctl00$Main$btnSearchOutage" value="جستجو" id="ContentPlaceHolder1_btnSearchOutage" />
	<input type="submit" name="ctl00$Main$btnOther" value="دیگر" />
</form>
</body>
</html>`

const resultsPage = `
<html><body>
<table id="ContentPlaceHolder1_grdOutages">
	<tr><th>تاریخ</th><th>از ساعت</th><th>تا ساعت</th><th>شهر</th><th>آدرس</th></tr>
	<tr><td> 1404/06/10 </td><td>08:00</td><td>10:00</td><td></td><td>District   X
		Street 5</td></tr>
	<tr><td></td><td> </td></tr>
	<tr><td>1404/06/10</td><td>12:00</td><td>14:00</td><td></td><td>خیابان امام، کوچه بهار</td></tr>
</table>
</body></html>`

type fakePortal struct {
	mu        sync.Mutex
	page      string
	results   string
	posted    url.Values
	postPath  string
	gotCookie bool
}

func (f *fakePortal) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodGet {
			http.SetCookie(w, &http.Cookie{Name: "ASP.NET_SessionId", Value: "abc", Path: "/"})
			io.WriteString(w, f.page)
			return
		}

		_ = r.ParseForm()
		f.mu.Lock()
		f.posted = r.PostForm
		f.postPath = r.URL.Path
		_, err := r.Cookie("ASP.NET_SessionId")
		f.gotCookie = err == nil
		f.mu.Unlock()
		io.WriteString(w, f.results)
	})
}

func newTestClient(t *testing.T, url string) *PortalClient {
	t.Helper()
	client, err := NewPortalClient(PortalOptions{BaseURL: url, Timeout: 5 * time.Second, MaxDuration: 10 * time.Second}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestFetchOutageRows_SubmitsResolvedFields(t *testing.T) {
	portal := &fakePortal{page: searchPage, results: resultsPage}
	server := httptest.NewServer(portal.handler())
	defer server.Close()

	client := newTestClient(t, server.URL+"/")
	table, err := client.FetchOutageRows(context.Background(), "1404/06/10", "1404/06/10", "3")
	require.NoError(t, err)

	assert.Equal(t, []string{"تاریخ", "از ساعت", "تا ساعت", "شهر", "آدرس"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"1404/06/10", "08:00", "10:00", "", "District X Street 5"}, table.Rows[0])
	assert.Equal(t, "خیابان امام، کوچه بهار", table.Rows[1][4])

	assert.Equal(t, "/Default.aspx", portal.postPath)
	assert.True(t, portal.gotCookie, "session cookie should be sent back")
	assert.Equal(t, "vs-token", portal.posted.Get("__VIEWSTATE"))
	assert.Equal(t, "ev-token", portal.posted.Get("__EVENTVALIDATION"))
	assert.Equal(t, "rbIsAddress", portal.posted.Get("ctl00$Main$mode"))
	assert.Equal(t, "3", portal.posted.Get("ctl00$Main$ddlAreaV2"))
	assert.Equal(t, "1404/06/10", portal.posted.Get("ctl00$Main$from"))
	assert.Equal(t, "1404/06/10", portal.posted.Get("ctl00$Main$to"))
	assert.Equal(t, "جستجو", portal.posted.Get("ctl00$Main$btnSearchOutage"))
	assert.Empty(t, portal.posted.Get("ctl00$Main$btnOther"))
}

func TestFetchOutageRows_FallbackLabelAndDefaultNames(t *testing.T) {
	page := `<html><body><form method="post">
		<input type="hidden" name="__VIEWSTATE" value="vs" />
		<button type="submit"> جستجو </button>
	</form></body></html>`
	portal := &fakePortal{page: page, results: resultsPage}
	server := httptest.NewServer(portal.handler())
	defer server.Close()

	client := newTestClient(t, server.URL+"/search")
	table, err := client.FetchOutageRows(context.Background(), "1404/06/01", "1404/06/02", "7")
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)

	assert.Equal(t, "/search", portal.postPath)
	assert.Equal(t, "vs", portal.posted.Get("__VIEWSTATE"))
	assert.Equal(t, "on", portal.posted.Get(modeField.fallback))
	assert.Equal(t, "7", portal.posted.Get(areaField.fallback))
	assert.Equal(t, "1404/06/01", portal.posted.Get(dateFromField.fallback))
	assert.Equal(t, "1404/06/02", portal.posted.Get(dateToField.fallback))
}

func TestFetchOutageRows_FormNotFound(t *testing.T) {
	portal := &fakePortal{page: `<html><body><p>maintenance</p></body></html>`}
	server := httptest.NewServer(portal.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FetchOutageRows(context.Background(), "1404/06/10", "1404/06/10", "3")
	assert.ErrorIs(t, err, ErrFormNotFound)
	assert.NotErrorIs(t, err, ErrFetchFailed)
}

func TestFetchOutageRows_NoResultsTable(t *testing.T) {
	portal := &fakePortal{page: searchPage, results: `<html><body>موردی یافت نشد</body></html>`}
	server := httptest.NewServer(portal.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	table, err := client.FetchOutageRows(context.Background(), "1404/06/10", "1404/06/10", "3")
	require.NoError(t, err)
	assert.Empty(t, table.Header)
	assert.Empty(t, table.Rows)
}

func TestFetchOutageRows_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FetchOutageRows(context.Background(), "1404/06/10", "1404/06/10", "3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "load search page", fetchErr.Op)
}

func TestFetchOutageRows_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client, err := NewPortalClient(PortalOptions{BaseURL: server.URL, Timeout: 50 * time.Millisecond, MaxDuration: 100 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.FetchOutageRows(context.Background(), "1404/06/10", "1404/06/10", "3")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestParseResultsTable_HeaderDuplicatedInBody(t *testing.T) {
	portal := &fakePortal{page: searchPage, results: `<table id="ContentPlaceHolder1_grdOutages">
		<tr><th>a</th><th>b</th></tr>
		<tr><th>a</th><th>b</th></tr>
		<tr><td>1</td><td>2</td></tr>
	</table>`}
	server := httptest.NewServer(portal.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	table, err := client.FetchOutageRows(context.Background(), "1404/06/10", "1404/06/10", "3")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Header)
	// The portal's own duplicate is kept here; the importer drops it.
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, table.Rows)
}
