package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

var testNow = time.Date(2024, 10, 20, 9, 0, 0, 0, time.UTC)

func setupTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	s := store.NewSQLStore(db.NewTestDB(t))
	coord := lending.NewCoordinator(s, lending.WithClock(func() time.Time { return testNow }))
	server := httptest.NewServer(LoggingMiddleware(NewRouter(s, coord)))
	t.Cleanup(server.Close)
	return server, s
}

// call sends a JSON request and returns the status and decoded body.
func call(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

// list fetches a JSON array endpoint.
func list[T any](t *testing.T, url string) []T {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createBook(t *testing.T, url, title string) string {
	t.Helper()
	status, body := call(t, "POST", url+"/api/books", map[string]any{
		"title": title, "author": "Ivan Cankar", "price": 12.5,
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["bookId"].(string)
}

func createUser(t *testing.T, url, username string) string {
	t.Helper()
	status, body := call(t, "POST", url+"/api/users", map[string]any{
		"username": username, "email": username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["userId"].(string)
}

func TestBooksAPI(t *testing.T) {
	server, _ := setupTestServer(t)
	url := server.URL

	id := createBook(t, url, "Martin Krpan")

	books := list[model.Book](t, url+"/api/books")
	require.Len(t, books, 1)
	assert.Equal(t, model.Available, books[0].IsAvailable)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"create without price", "POST", "/api/books", map[string]any{"title": "a", "author": "b"}, 400},
		{"create negative price", "POST", "/api/books", map[string]any{"title": "a", "author": "b", "price": -1}, 400},
		{"create price as text", "POST", "/api/books", `{"title":"a","author":"b","price":"free"}`, 400},
		{"create malformed json", "POST", "/api/books", `{"title":`, 400},
		{"update without id", "PUT", "/api/books", map[string]any{"title": "x"}, 400},
		{"update malformed id", "PUT", "/api/books?id=abc", map[string]any{"title": "x"}, 400},
		{"update no fields", "PUT", "/api/books?id=" + id, map[string]any{}, 400},
		{"update negative price", "PUT", "/api/books?id=" + id, map[string]any{"price": -3}, 400},
		{"update missing book", "PUT", "/api/books?id=9999", map[string]any{"title": "x"}, 404},
		{"delete without id", "DELETE", "/api/books", nil, 400},
		{"delete missing book", "DELETE", "/api/books?id=9999", nil, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, tt.method, url+tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["message"], "error body must carry a message")
		})
	}

	status, body := call(t, "PUT", url+"/api/books?id="+id, map[string]any{"title": "Martin Krpan z Vrha", "price": 0})
	require.Equal(t, http.StatusOK, status)
	book := body["book"].(map[string]any)
	assert.Equal(t, "Martin Krpan z Vrha", book["title"])
	assert.Equal(t, "Ivan Cankar", book["author"])
	assert.EqualValues(t, 0, book["price"])

	status, body = call(t, "DELETE", url+"/api/books?id="+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["id"])
	assert.Empty(t, list[model.Book](t, url+"/api/books"))
}

func TestLoanLifecycleAPI(t *testing.T) {
	server, _ := setupTestServer(t)
	url := server.URL

	bookID := createBook(t, url, "Na klancu")
	userID := createUser(t, url, "ana")

	status, body := call(t, "POST", url+"/api/books/loan", map[string]any{"userId": userID, "bookId": bookID})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Book loaned successfully.", body["message"])
	loan := body["loan"].(map[string]any)
	assert.Equal(t, testNow.Add(model.DefaultLoanPeriod).Format(time.RFC3339), loan["returnDate"])

	status, body = call(t, "POST", url+"/api/books/loan", map[string]any{"userId": userID, "bookId": bookID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Book is not available.", body["message"])

	status, _ = call(t, "DELETE", url+"/api/books?id="+bookID, nil)
	assert.Equal(t, http.StatusConflict, status)

	loans := list[model.Loan](t, url+"/api/loans")
	require.Len(t, loans, 1)
	assert.Equal(t, bookID, loans[0].BookID)
	assert.Equal(t, userID, loans[0].UserID)

	status, body = call(t, "PUT", url+"/api/books/return?id="+bookID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Book returned successfully.", body["message"])

	// Returning again is permitted.
	status, _ = call(t, "PUT", url+"/api/books/return?id="+bookID, nil)
	assert.Equal(t, http.StatusOK, status)

	assert.Empty(t, list[model.Loan](t, url+"/api/loans"))
	books := list[model.Book](t, url+"/api/books")
	require.Len(t, books, 1)
	assert.Equal(t, model.Available, books[0].IsAvailable)

	status, body = call(t, "GET", url+"/api/loans/reconcile", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["orphaned"])
	assert.Empty(t, body["dangling"])
}

func TestLoanRequestedReturnDateAPI(t *testing.T) {
	server, _ := setupTestServer(t)
	bookID := createBook(t, server.URL, "Alamut")
	userID := createUser(t, server.URL, "bor")

	status, body := call(t, "POST", server.URL+"/api/books/loan", map[string]any{
		"userId": userID, "bookId": bookID, "returnDate": "2024-11-01",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "2024-11-01T00:00:00Z", body["loan"].(map[string]any)["returnDate"])
}

func TestLoanErrorsAPI(t *testing.T) {
	server, _ := setupTestServer(t)
	url := server.URL
	bookID := createBook(t, url, "Cvetje v jeseni")
	userID := createUser(t, url, "ana")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing book id", "POST", "/api/books/loan", map[string]any{"userId": userID}, 400},
		{"missing user id", "POST", "/api/books/loan", map[string]any{"bookId": bookID}, 400},
		{"malformed id", "POST", "/api/books/loan", map[string]any{"userId": "x", "bookId": bookID}, 400},
		{"bad return date", "POST", "/api/books/loan", map[string]any{"userId": userID, "bookId": bookID, "returnDate": "soon"}, 400},
		{"malformed json", "POST", "/api/books/loan", `{"userId":`, 400},
		{"unknown user", "POST", "/api/books/loan", map[string]any{"userId": "9999", "bookId": bookID}, 404},
		{"unknown book", "POST", "/api/books/loan", map[string]any{"userId": userID, "bookId": "9999"}, 404},
		{"return without id", "PUT", "/api/books/return", nil, 400},
		{"return malformed id", "PUT", "/api/books/return?id=abc", nil, 400},
		{"return unknown book", "PUT", "/api/books/return?id=9999", nil, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, tt.method, url+tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["message"])
		})
	}

	// None of the failures touched state.
	assert.Empty(t, list[model.Loan](t, url+"/api/loans"))
	books := list[model.Book](t, url+"/api/books")
	require.Len(t, books, 1)
	assert.Equal(t, model.Available, books[0].IsAvailable)
}

func TestConcurrentLoansAPI(t *testing.T) {
	server, _ := setupTestServer(t)
	bookID := createBook(t, server.URL, "Deseti brat")

	const n = 6
	userIDs := make([]string, n)
	for i := range userIDs {
		userIDs[i] = createUser(t, server.URL, "reader"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	statuses := make([]int, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := `{"userId":"` + userIDs[i] + `","bookId":"` + bookID + `"}`
			resp, err := http.Post(server.URL+"/api/books/loan", "application/json", bytes.NewReader([]byte(body)))
			if err != nil {
				t.Errorf("loan request: %v", err)
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	created := 0
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest, http.StatusInternalServerError:
		default:
			t.Errorf("unexpected status %d", status)
		}
	}
	assert.Equal(t, 1, created)
	assert.Len(t, list[model.Loan](t, server.URL+"/api/loans"), 1)
}

func TestUsersAPI(t *testing.T) {
	server, _ := setupTestServer(t)
	url := server.URL

	id := createUser(t, url, "ana")

	users := list[model.User](t, url+"/api/users")
	require.Len(t, users, 1)
	assert.Equal(t, model.DefaultName, users[0].Name)
	assert.Equal(t, model.RoleUser, users[0].Role)
	assert.Equal(t, model.NoPenalty, users[0].Penalty)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"duplicate username", "POST", "/api/users", map[string]any{"username": "ana", "email": "other@example.com"}, 409},
		{"duplicate email", "POST", "/api/users", map[string]any{"username": "other", "email": "ana@example.com"}, 409},
		{"missing email", "POST", "/api/users", map[string]any{"username": "bor"}, 400},
		{"invalid email", "POST", "/api/users", map[string]any{"username": "bor", "email": "nope"}, 400},
		{"login unknown", "POST", "/api/users/login", map[string]any{"username": "ana", "email": "wrong@example.com"}, 401},
		{"login missing email", "POST", "/api/users/login", map[string]any{"username": "ana"}, 400},
		{"upgrade without id", "PUT", "/api/users/upgrade", nil, 400},
		{"upgrade unknown", "PUT", "/api/users/upgrade?id=9999", nil, 404},
		{"penalty missing", "PUT", "/api/users?id=" + id, map[string]any{}, 400},
		{"penalty without fine", "PUT", "/api/users?id=" + id, map[string]any{"penalty": map[string]any{"reason": "late"}}, 400},
		{"penalty negative fine", "PUT", "/api/users?id=" + id, map[string]any{"penalty": map[string]any{"reason": "late", "fine": -2}}, 400},
		{"penalty unknown user", "PUT", "/api/users?id=9999", map[string]any{"penalty": map[string]any{"reason": "late", "fine": 2}}, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, tt.method, url+tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["message"])
		})
	}

	status, body := call(t, "POST", url+"/api/users/login", map[string]any{"username": "ana", "email": "ana@example.com"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"username": "ana", "email": "ana@example.com"}, body)

	status, _ = call(t, "PUT", url+"/api/users/upgrade?id="+id, nil)
	require.Equal(t, http.StatusOK, status)
	status, body = call(t, "PUT", url+"/api/users/upgrade?id="+id, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User is already an ADMIN.", body["message"])

	status, _ = call(t, "PUT", url+"/api/users?id="+id, map[string]any{"penalty": map[string]any{"reason": "Late return", "fine": 2.5}})
	require.Equal(t, http.StatusOK, status)

	users = list[model.User](t, url+"/api/users")
	require.Len(t, users, 1)
	assert.Equal(t, model.RoleAdmin, users[0].Role)
	assert.Equal(t, model.Penalty{Reason: "Late return", Fine: 2.5}, users[0].Penalty)
}

func uploadCover(t *testing.T, url string, data []byte) int {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("cover", "cover.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("PUT", url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestBookCoverAPI(t *testing.T) {
	server, _ := setupTestServer(t)
	id := createBook(t, server.URL, "Solzice")
	coverURL := server.URL + "/api/books/" + id + "/cover"

	resp, err := http.Get(coverURL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	img := image.NewRGBA(image.Rect(0, 0, 60, 90))
	for x := range 60 {
		for y := range 90 {
			img.Set(x, y, color.RGBA{10, 120, 40, 255})
		}
	}
	var pngData bytes.Buffer
	require.NoError(t, png.Encode(&pngData, img))

	assert.Equal(t, http.StatusBadRequest, uploadCover(t, coverURL, []byte("plain text")))
	assert.Equal(t, http.StatusNotFound, uploadCover(t, server.URL+"/api/books/9999/cover", pngData.Bytes()))
	require.Equal(t, http.StatusOK, uploadCover(t, coverURL, pngData.Bytes()))

	resp, err = http.Get(coverURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	got, _, err := image.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 60, 90), got.Bounds())

	books := list[model.Book](t, server.URL+"/api/books")
	require.Len(t, books, 1)
	assert.Equal(t, "image/jpeg", books[0].CoverMime)
}
