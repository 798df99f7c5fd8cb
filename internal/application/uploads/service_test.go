package uploads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"objektbetreuer-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	bucket, path string
}

func (f *fakeClient) CreateSignedUploadURL(ctx context.Context, bucket, objectPath string) (string, error) {
	f.bucket, f.path = bucket, objectPath
	return "https://storage.test/sign/" + objectPath + "?token=t", nil
}

func TestPropertyImageUpload(t *testing.T) {
	client := &fakeClient{}
	svc := &Service{
		Client:      client,
		SupabaseURL: "https://proj.supabase.co/",
		Now:         func() time.Time { return time.UnixMilli(1700000000000) },
	}
	company, property := uuid.New(), uuid.New()
	scope, err := tenant.For(company)
	require.NoError(t, err)

	res, err := svc.PropertyImageUpload(context.Background(), scope, property, "../Fassade Süd.JPG")
	require.NoError(t, err)
	assert.Equal(t, DefaultBucket, client.bucket)
	assert.Equal(t, company.String()+"/"+property.String()+"/1700000000000-Fassade_S_d.JPG", res.Path)
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/property-images/"+res.Path, res.PublicURL)
	assert.True(t, strings.HasPrefix(res.UploadURL, "https://storage.test/sign/"))

	assert.NoError(t, svc.CheckPublicURL(scope, res.PublicURL))
	other, _ := tenant.For(uuid.New())
	assert.ErrorIs(t, svc.CheckPublicURL(other, res.PublicURL), ErrForeignObject)
}

func TestPropertyImageUpload_Validation(t *testing.T) {
	svc := &Service{Client: &fakeClient{}, SupabaseURL: "https://proj.supabase.co"}
	scope, _ := tenant.For(uuid.New())

	_, err := svc.PropertyImageUpload(context.Background(), scope, uuid.New(), "  ")
	assert.ErrorIs(t, err, ErrFileName)
	_, err = svc.PropertyImageUpload(context.Background(), scope, uuid.New(), "vertrag.pdf")
	assert.ErrorIs(t, err, ErrFileType)
}

func TestHTTPClient_RelativeURL(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotKey = r.URL.Path, r.Header.Get("apikey")
		w.Write([]byte(`{"url":"/object/upload/sign/property-images/a.jpg?token=abc"}`))
	}))
	defer srv.Close()

	c := &HTTPClient{BaseURL: srv.URL, SecretKey: "service-role"}
	url, err := c.CreateSignedUploadURL(context.Background(), "property-images", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/storage/v1/object/upload/sign/property-images/a.jpg", gotPath)
	assert.Equal(t, "service-role", gotKey)
	assert.Equal(t, srv.URL+"/object/upload/sign/property-images/a.jpg?token=abc", url)
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	c := &HTTPClient{BaseURL: srv.URL, SecretKey: "anon"}
	_, err := c.CreateSignedUploadURL(context.Background(), "b", "p")
	assert.Error(t, err)
}
