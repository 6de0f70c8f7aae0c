package records

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/domain"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

type recordStoreServer struct {
	t       *testing.T
	grants  atomic.Int32
	mux     *http.ServeMux
	server  *httptest.Server
	revoked atomic.Bool
}

func newRecordStoreServer(t *testing.T) *recordStoreServer {
	s := &recordStoreServer{t: t, mux: http.NewServeMux()}
	s.mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
			return
		}
		if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("client_id") != "cid" || r.PostForm.Get("username") != "bot@x.com" {
			t.Errorf("token form = %v", r.PostForm)
		}
		n := s.grants.Add(1)
		writeJSON(w, tokenResponse{AccessToken: "tok" + string(rune('0'+n)), ExpiresIn: 3600})
	})
	s.server = httptest.NewServer(s.authorized(s.mux))
	t.Cleanup(s.server.Close)
	return s
}

func (s *recordStoreServer) authorized(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			auth := r.Header.Get("Authorization")
			if auth == "" || (s.revoked.Load() && auth == "OAuth2 tok1") {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *recordStoreServer) client() *Client {
	return NewClient(config.DestinationConfig{
		APIURL:       s.server.URL,
		UploadURL:    s.server.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		Username:     "bot@x.com",
		Password:     "pw",
	}, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestFindByExternalID(t *testing.T) {
	s := newRecordStoreServer(t)
	s.mux.HandleFunc("/item/app/13731/v2/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("external_id") != "42" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"filtered": 1, "total": 9, "items": [{"item_id": 5, "external_id": "42",
			"title": "Printer", "link": "https://records.example.com/items/5",
			"current_revision": {"created_on": "2011-03-04 05:06:07"}}]}`)
	})

	got, err := s.client().FindByExternalID(context.Background(), 13731, "42")
	if err != nil {
		t.Fatal(err)
	}
	want := domain.DestinationRecord{
		ID: 5, ExternalID: "42", Title: "Printer", Link: "https://records.example.com/items/5",
		LastModified: time.Date(2011, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	if len(got) != 1 || !reflect.DeepEqual(got[0], want) {
		t.Errorf("records = %+v, want %+v", got, want)
	}
}

func TestCreateRecordBody(t *testing.T) {
	s := newRecordStoreServer(t)
	s.mux.HandleFunc("/item/app/13731/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Query().Get("silent") != "true" {
			t.Errorf("request = %s %s", r.Method, r.URL)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
			return
		}
		if body["external_id"] != "42" {
			t.Errorf("external_id = %v", body["external_id"])
		}
		fields := body["fields"].([]any)
		first := fields[0].(map[string]any)
		if first["field_id"] != float64(1) || first["values"].([]any)[0].(map[string]any)["value"] != "Title" {
			t.Errorf("fields = %v", fields)
		}
		if tags := body["tags"].([]any); len(tags) != 1 || tags[0] != "printer" {
			t.Errorf("tags = %v", tags)
		}
		writeJSON(w, itemCreatedJSON{ItemID: 77})
	})

	id, err := s.client().CreateRecord(context.Background(), 13731, domain.RecordWrite{
		ExternalID: "42",
		Fields:     []domain.FieldValue{{FieldID: 1, Value: "Title"}, {FieldID: 2, Value: int64(9)}},
		Tags:       []string{"printer"},
		Silent:     true,
	})
	if err != nil || id != 77 {
		t.Errorf("CreateRecord = (%d, %v), want 77", id, err)
	}
}

func TestTokenReusedAndRefreshedOn401(t *testing.T) {
	s := newRecordStoreServer(t)
	var calls atomic.Int32
	s.mux.HandleFunc("/item/5", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	client := s.client()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := client.UpdateRecord(ctx, 5, domain.RecordWrite{ExternalID: "1"}); err != nil {
			t.Fatal(err)
		}
	}
	if s.grants.Load() != 1 {
		t.Errorf("grants = %d, want the token reused", s.grants.Load())
	}

	s.revoked.Store(true)
	if err := client.UpdateRecord(ctx, 5, domain.RecordWrite{ExternalID: "1"}); err != nil {
		t.Fatalf("UpdateRecord after revocation: %v", err)
	}
	if s.grants.Load() != 2 || calls.Load() != 3 {
		t.Errorf("grants = %d calls = %d, want 2 and 3", s.grants.Load(), calls.Load())
	}
}

func TestSearchContacts(t *testing.T) {
	s := newRecordStoreServer(t)
	s.mux.HandleFunc("/contact/space/208/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mail") != "a@x.com" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `[{"profile_id": 1, "user_id": 2, "name": "Ann", "mail": ["a@x.com"]}]`)
	})

	got, err := s.client().SearchContacts(context.Background(), 208, domain.ContactFieldMail, "a@x.com")
	if err != nil {
		t.Fatal(err)
	}
	want := []domain.DestinationContact{{ProfileID: 1, UserID: 2, Name: "Ann", Email: "a@x.com"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("contacts = %+v, want %+v", got, want)
	}
}

func TestCommentsAndTags(t *testing.T) {
	s := newRecordStoreServer(t)
	var posted commentCreateJSON
	var tags []string
	s.mux.HandleFunc("/comment/item/5/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `[{"comment_id": 1, "value": "hello"}]`)
		case http.MethodPost:
			if r.URL.Query().Get("silent") != "false" {
				t.Errorf("silent = %s", r.URL.Query().Get("silent"))
			}
			_ = json.NewDecoder(r.Body).Decode(&posted)
			writeJSON(w, map[string]int64{"comment_id": 2})
		}
	})
	s.mux.HandleFunc("/tag/item/5/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&tags)
		w.WriteHeader(http.StatusNoContent)
	})
	client := s.client()
	ctx := context.Background()
	ref := domain.ItemReference(5)

	comments, err := client.ListComments(ctx, ref)
	if err != nil || len(comments) != 1 || comments[0].Value != "hello" {
		t.Errorf("ListComments = (%+v, %v)", comments, err)
	}
	if err := client.CreateComment(ctx, ref, "hi", []int64{9}, false); err != nil {
		t.Fatal(err)
	}
	if posted.Value != "hi" || !reflect.DeepEqual(posted.FileIDs, []int64{9}) {
		t.Errorf("posted = %+v", posted)
	}
	if err := client.SetTags(ctx, ref, nil); err != nil {
		t.Fatal(err)
	}
	if tags == nil || len(tags) != 0 {
		t.Errorf("tags = %v, want empty list", tags)
	}
}

func TestUploadFromURL(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/attachments/token/gone/" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "file-bytes")
	}))
	t.Cleanup(files.Close)

	s := newRecordStoreServer(t)
	var attached attachJSON
	s.mux.HandleFunc("/file/v2/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
			return
		}
		if r.FormValue("filename") != "photo.jpg" {
			t.Errorf("filename = %q", r.FormValue("filename"))
		}
		f, _, err := r.FormFile("source")
		if err != nil {
			t.Error(err)
			return
		}
		content, _ := io.ReadAll(f)
		if string(content) != "file-bytes" {
			t.Errorf("content = %q", content)
		}
		writeJSON(w, fileJSON{FileID: 31})
	})
	s.mux.HandleFunc("/file/31/attach", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&attached)
		w.WriteHeader(http.StatusNoContent)
	})
	client := s.client()
	ctx := context.Background()

	ref := domain.ItemReference(5)
	id, err := client.UploadFromURL(ctx, files.URL+"/photos/photo.jpg", "", &ref)
	if err != nil || id != 31 {
		t.Fatalf("UploadFromURL = (%d, %v), want 31", id, err)
	}
	if attached != (attachJSON{RefType: domain.ReferenceItem, RefID: 5}) {
		t.Errorf("attached = %+v", attached)
	}

	_, err = client.UploadFromURL(ctx, files.URL+"/attachments/token/gone/?name=x.txt", "x.txt", nil)
	if !apperrors.IsNotFound(err) {
		t.Errorf("missing download error = %v, want not found", err)
	}
}

func TestUploadFromURLDestinationNotFoundIsUpstream(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "file-bytes")
	}))
	t.Cleanup(files.Close)

	tests := []struct {
		name   string
		upload int
		attach int
	}{
		{"attach 404", http.StatusOK, http.StatusNotFound},
		{"upload 404", http.StatusNotFound, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newRecordStoreServer(t)
			s.mux.HandleFunc("/file/v2/", func(w http.ResponseWriter, r *http.Request) {
				if tt.upload != http.StatusOK {
					http.NotFound(w, r)
					return
				}
				writeJSON(w, fileJSON{FileID: 77})
			})
			s.mux.HandleFunc("/file/77/attach", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.attach)
			})

			ref := domain.ItemReference(5)
			_, err := s.client().UploadFromURL(context.Background(), files.URL+"/a.txt", "a.txt", &ref)
			if err == nil {
				t.Fatal("UploadFromURL succeeded, want an error")
			}
			if apperrors.IsNotFound(err) {
				t.Errorf("error = %v, must not read as a missing source file", err)
			}
			if !apperrors.HasCode(err, apperrors.CodeUpstream) {
				t.Errorf("error = %v, want upstream", err)
			}
		})
	}
}

func TestUploadFromURLRejectsOversizedFile(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "far too many bytes")
	}))
	t.Cleanup(files.Close)

	s := newRecordStoreServer(t)
	var uploads atomic.Int32
	s.mux.HandleFunc("/file/v2/", func(w http.ResponseWriter, _ *http.Request) {
		uploads.Add(1)
		writeJSON(w, fileJSON{FileID: 1})
	})
	client := s.client()
	client.maxFileBytes = 4

	_, err := client.UploadFromURL(context.Background(), files.URL+"/big.bin", "big.bin", nil)
	if err == nil || apperrors.IsNotFound(err) {
		t.Errorf("error = %v, want a size error", err)
	}
	if uploads.Load() != 0 {
		t.Errorf("uploads = %d, want none", uploads.Load())
	}
}

func TestServerErrorIsUpstream(t *testing.T) {
	s := newRecordStoreServer(t)
	s.mux.HandleFunc("/item/app/1/v2/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	if _, err := s.client().FindByExternalID(context.Background(), 1, "1"); !apperrors.HasCode(err, apperrors.CodeUpstream) {
		t.Errorf("error = %v, want upstream", err)
	}
}

func TestFilenameOf(t *testing.T) {
	tests := map[string]string{
		"https://x.com/a/b/photo.png?size=2": "photo.png",
		"https://x.com/":                     "file",
	}
	for in, want := range tests {
		if got := filenameOf(in); got != want {
			t.Errorf("filenameOf(%q) = %q, want %q", in, got, want)
		}
	}
}
