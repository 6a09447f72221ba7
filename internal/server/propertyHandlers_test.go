package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatehub/internal/model"
)

type addPropertyJSON struct {
	Property     propertyJSON `json:"property"`
	Notification fanoutResult `json:"notification"`
	Warning      string       `json:"warning"`
}

func TestPropertyAddSubtypeRule(t *testing.T) {
	e := newTestEnv(t)
	owner, lt := e.addUser("Owner", "")

	rec := e.do(http.MethodPost, "/property/add", lt, villaDetails())
	_, got := decode[addPropertyJSON](t, rec, http.StatusCreated)
	assert.Equal(t, owner.ID.Hex(), got.Property.OwnerID)
	assert.Equal(t, []float64{pune.Lng, pune.Lat}, got.Property.Location.Coordinates)
	assert.Empty(t, got.Warning)
	assert.Equal(t, 1, e.user(owner.ID).ListingsCount)

	d := villaDetails()
	d.PropertyType = model.Commercial
	d.ResidentialType = ""
	assertError(t, e.do(http.MethodPost, "/property/add", lt, d), http.StatusBadRequest, "Invalid commercialType")

	d.CommercialType = "office"
	d.ResidentialType = "villa"
	assertError(t, e.do(http.MethodPost, "/property/add", lt, d), http.StatusBadRequest, "Invalid residentialType")

	d = villaDetails()
	d.Phone = "12345"
	assertError(t, e.do(http.MethodPost, "/property/add", lt, d), http.StatusBadRequest, "Invalid phone")

	assert.Len(t, e.db.properties, 1)
	assert.Equal(t, 1, e.user(owner.ID).ListingsCount)
}

func TestPropertyAddFanOut(t *testing.T) {
	e := newTestEnv(t)
	owner, lt := e.addUser("Owner", "tok-owner")
	e.addUser("Buyer1", "tok-1")
	e.addUser("Buyer2", "tok-2")
	e.addUser("Buyer3", "tok-3")
	e.addUser("Buyer4", "tok-1")
	e.addUser("Silent", "")
	e.pusher.failTokens["tok-2"] = true

	rec := e.do(http.MethodPost, "/property/add", lt, villaDetails())
	_, got := decode[addPropertyJSON](t, rec, http.StatusCreated)
	assert.Equal(t, fanoutResult{Sent: 2, Failed: 1}, got.Notification)

	sent := e.pusher.sentTokens()
	assert.ElementsMatch(t, []string{"tok-1", "tok-2", "tok-3"}, sent)
	assert.NotContains(t, sent, "tok-owner")
	require.Len(t, e.pusher.calls, 1)
	assert.Equal(t, got.Property.ID, e.pusher.calls[0].Data["propertyId"])
	assert.Equal(t, 1, e.user(owner.ID).ListingsCount)
}

func TestPropertyAddPushDispatchFailure(t *testing.T) {
	e := newTestEnv(t)
	_, lt := e.addUser("Owner", "")
	e.addUser("Buyer1", "tok-1")
	e.addUser("Buyer2", "tok-2")
	e.pusher.err = assert.AnError

	rec := e.do(http.MethodPost, "/property/add", lt, villaDetails())
	_, got := decode[addPropertyJSON](t, rec, http.StatusCreated)
	assert.Equal(t, fanoutResult{Sent: 0, Failed: 2}, got.Notification)
	assert.Len(t, e.db.properties, 1)
}

func TestPropertyAddCounterFailureWarns(t *testing.T) {
	e := newTestEnv(t)
	_, lt := e.addUser("Owner", "")
	e.db.failCounters = true

	rec := e.do(http.MethodPost, "/property/add", lt, villaDetails())
	_, got := decode[addPropertyJSON](t, rec, http.StatusCreated)
	assert.Equal(t, inconsistentCounterWarning, got.Warning)
	assert.Len(t, e.db.properties, 1)
}

func TestPropertyAddUnresolvedAddress(t *testing.T) {
	e := newTestEnv(t)
	_, lt := e.addUser("Owner", "")

	d := villaDetails()
	d.Address = "Somewhere unmapped"
	rec := e.do(http.MethodPost, "/property/add", lt, d)
	_, got := decode[addPropertyJSON](t, rec, http.StatusCreated)
	assert.Equal(t, []float64{0, 0}, got.Property.Location.Coordinates)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func villaForm() map[string]string {
	return map[string]string{
		"address":         "12 MG Road, Pune",
		"area":            "2400",
		"availability":    "Ready-to-Move",
		"price":           "15000000",
		"description":     "Corner villa with garden",
		"furnishing":      "Furnished",
		"parking":         "Available",
		"purpose":         "Sell",
		"propertyType":    "Residential",
		"residentialType": "Villa",
		"phone":           "+919876543210",
	}
}

func TestPropertyAddMultipartPhotos(t *testing.T) {
	e := newTestEnv(t)
	_, lt := e.addUser("Owner", "")

	body, contentType := multipartBody(t, villaForm(), map[string][]byte{"front.JPG": []byte("jpeg bytes")})
	req := httptest.NewRequest(http.MethodPost, "/property/add", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+lt)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	_, got := decode[addPropertyJSON](t, rec, http.StatusCreated)
	require.Len(t, got.Property.Photos, 1)
	photo := got.Property.Photos[0]
	assert.True(t, strings.HasPrefix(photo, "/uploads/"))
	assert.True(t, strings.HasSuffix(photo, ".jpg"))

	stored, err := os.ReadFile(filepath.Join(e.srv.Settings.UploadDir, strings.TrimPrefix(photo, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(stored))

	served := e.do(http.MethodGet, photo, "", nil)
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "jpeg bytes", served.Body.String())
}

func TestPropertyAddMultipartRejectsBadInput(t *testing.T) {
	e := newTestEnv(t)
	_, lt := e.addUser("Owner", "")

	send := func(fields map[string]string, files map[string][]byte) *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, fields, files)
		req := httptest.NewRequest(http.MethodPost, "/property/add", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+lt)
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	assertError(t, send(villaForm(), map[string][]byte{"plan.gif": []byte("gif")}), http.StatusBadRequest, "Invalid photos")
	mixed := map[string][]byte{"front.jpg": []byte("jpeg"), "plan.gif": []byte("gif")}
	assertError(t, send(villaForm(), mixed), http.StatusBadRequest, "Invalid photos")
	left, err := os.ReadDir(e.srv.Settings.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, left)

	form := villaForm()
	form["price"] = "a lot"
	assertError(t, send(form, nil), http.StatusBadRequest, "Invalid price")
	assert.Empty(t, e.db.properties)
}

func TestPropertyAddInsertFailureRemovesPhotos(t *testing.T) {
	e := newTestEnv(t)
	_, lt := e.addUser("Owner", "")
	e.db.failInserts = true

	body, contentType := multipartBody(t, villaForm(), map[string][]byte{"front.jpg": []byte("jpeg"), "back.png": []byte("png")})
	req := httptest.NewRequest(http.MethodPost, "/property/add", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+lt)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())

	left, err := os.ReadDir(e.srv.Settings.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestPropertyGet(t *testing.T) {
	e := newTestEnv(t)
	owner, lt := e.addUser("Owner", "")
	p := e.addProperty(owner.ID, pune, nil)

	_, got := decode[propertyJSON](t, e.do(http.MethodGet, "/property/"+p.ID.Hex(), lt, nil), http.StatusOK)
	assert.Equal(t, p.ID.Hex(), got.ID)

	assertError(t, e.do(http.MethodGet, "/property/not-an-id", lt, nil), http.StatusNotFound, "Property not found")
	assertError(t, e.do(http.MethodGet, "/property/"+owner.ID.Hex(), lt, nil), http.StatusNotFound, "Property not found")
}

func TestPropertyUpdate(t *testing.T) {
	e := newTestEnv(t)
	owner, lt := e.addUser("Owner", "")
	_, otherLt := e.addUser("Other", "")
	p := e.addProperty(owner.ID, pune, nil)
	path := "/property/" + p.ID.Hex()

	d := villaDetails()
	d.Price = 14000000
	assertError(t, e.do(http.MethodPut, path, otherLt, d), http.StatusForbidden, "Not allowed to modify this property")

	d.Address = "Mumbai"
	_, got := decode[propertyJSON](t, e.do(http.MethodPut, path, lt, d), http.StatusOK)
	assert.Equal(t, []float64{mumbai.Lng, mumbai.Lat}, got.Location.Coordinates)

	// unresolvable address keeps the previous location
	d.Address = "Nowhere at all"
	_, got = decode[propertyJSON](t, e.do(http.MethodPut, path, lt, d), http.StatusOK)
	assert.Equal(t, "Nowhere at all", got.Address)
	assert.Equal(t, []float64{mumbai.Lng, mumbai.Lat}, got.Location.Coordinates)

	d.Area = 0
	assertError(t, e.do(http.MethodPut, path, lt, d), http.StatusBadRequest, "Invalid area")
}

func TestPropertyDelete(t *testing.T) {
	e := newTestEnv(t)
	owner, lt := e.addUser("Owner", "")
	_, otherLt := e.addUser("Other", "")
	p := e.addProperty(owner.ID, pune, nil)
	owner.ListingsCount = 1
	e.db.users[owner.ID] = owner

	assertError(t, e.do(http.MethodDelete, "/property/"+p.ID.Hex(), otherLt, nil), http.StatusForbidden, "")
	decode[struct{}](t, e.do(http.MethodDelete, "/property/"+p.ID.Hex(), lt, nil), http.StatusOK)
	assert.Empty(t, e.db.properties)
	assert.Equal(t, 0, e.user(owner.ID).ListingsCount)

	assertError(t, e.do(http.MethodDelete, "/property/"+p.ID.Hex(), lt, nil), http.StatusNotFound, "")
}

func TestPropertyMarkSoldToggles(t *testing.T) {
	e := newTestEnv(t)
	owner, lt := e.addUser("Owner", "")
	_, otherLt := e.addUser("Other", "")
	p := e.addProperty(owner.ID, pune, nil)
	path := "/property/" + p.ID.Hex() + "/mark-sold"

	type soldJSON struct {
		ID     string `json:"id"`
		IsSold bool   `json:"isSold"`
	}
	resp, got := decode[soldJSON](t, e.do(http.MethodPatch, path, lt, nil), http.StatusOK)
	assert.True(t, got.IsSold)
	assert.Equal(t, "Property marked as sold", resp.Message)

	resp, got = decode[soldJSON](t, e.do(http.MethodPatch, path, lt, nil), http.StatusOK)
	assert.False(t, got.IsSold)
	assert.Equal(t, "Property marked as available", resp.Message)

	assertError(t, e.do(http.MethodPatch, path, otherLt, nil), http.StatusForbidden, "")
}

func TestPropertyDeleteSold(t *testing.T) {
	e := newTestEnv(t)
	owner, lt := e.addUser("Owner", "")
	p := e.addProperty(owner.ID, pune, nil)
	owner.ListingsCount = 1
	e.db.users[owner.ID] = owner
	path := "/property/" + p.ID.Hex() + "/sold"

	assertError(t, e.do(http.MethodDelete, path, lt, nil), http.StatusBadRequest, "Property is not marked as sold")
	assert.Len(t, e.db.properties, 1)
	assert.Equal(t, 1, e.user(owner.ID).ListingsCount)

	decode[struct{}](t, e.do(http.MethodPatch, "/property/"+p.ID.Hex()+"/mark-sold", lt, nil), http.StatusOK)
	decode[struct{}](t, e.do(http.MethodDelete, path, lt, nil), http.StatusOK)
	assert.Empty(t, e.db.properties)
	assert.Equal(t, 0, e.user(owner.ID).ListingsCount)
}

func TestPropertyVisit(t *testing.T) {
	e := newTestEnv(t)
	owner, ownerLt := e.addUser("Owner", "")
	visitor, lt := e.addUser("Visitor", "")
	p := e.addProperty(owner.ID, pune, nil)
	path := "/property/" + p.ID.Hex() + "/visit"

	type visitJSON struct {
		FirstVisit bool `json:"firstVisit"`
	}
	_, got := decode[visitJSON](t, e.do(http.MethodPost, path, lt, nil), http.StatusOK)
	assert.True(t, got.FirstVisit)
	_, got = decode[visitJSON](t, e.do(http.MethodPost, path, lt, nil), http.StatusOK)
	assert.False(t, got.FirstVisit)

	// the owner's own views are counted but are not enquiries
	_, got = decode[visitJSON](t, e.do(http.MethodPost, path, ownerLt, nil), http.StatusOK)
	assert.True(t, got.FirstVisit)

	stored := e.db.properties[p.ID]
	assert.Equal(t, 3, stored.VisitCount)
	require.Len(t, stored.VisitedBy, 2)
	assert.Equal(t, visitor.ID, stored.VisitedBy[0].UserID)
	assert.Equal(t, 1, e.user(owner.ID).EnquiriesCount)

	assertError(t, e.do(http.MethodPost, "/property/"+owner.ID.Hex()+"/visit", lt, nil), http.StatusNotFound, "Property not found")
}
