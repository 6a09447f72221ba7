package server

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/internal/apperror"
	"estatehub/internal/geo"
	"estatehub/internal/model"
)

const defaultMaxUploadBytes = 32 << 20

var photoExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

const inconsistentCounterWarning = "Listing saved but the owner's counters could not be updated"

// readPropertyDetails accepts either a JSON body or a multipart form whose
// fields carry the same names, plus "photos" file parts.
func (s Server) readPropertyDetails(w http.ResponseWriter, r *http.Request) (model.PropertyDetails, []*multipart.FileHeader, error) {
	var d model.PropertyDetails
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err := decodeJSON(r, &d)
		return d, nil, err
	}

	limit := s.Settings.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return d, nil, apperror.New(apperror.KindValidation, "Invalid multipart form", err)
	}

	f := r.MultipartForm.Value
	get := func(k string) string {
		if v := f[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	var err error
	if d.Area, err = parseFormFloat(get("area")); err != nil {
		return d, nil, apperror.Validation("Invalid area")
	}
	if d.Price, err = parseFormFloat(get("price")); err != nil {
		return d, nil, apperror.Validation("Invalid price")
	}
	d.Address = get("address")
	d.Availability = model.Availability(get("availability"))
	d.Description = get("description")
	d.Furnishing = model.Furnishing(get("furnishing"))
	d.Parking = model.Parking(get("parking"))
	d.Purpose = model.Purpose(get("purpose"))
	d.PropertyType = model.PropertyType(get("propertyType"))
	d.CommercialType = get("commercialType")
	d.ResidentialType = get("residentialType")
	d.Phone = get("phone")
	return d, r.MultipartForm.File["photos"], nil
}

func parseFormFloat(s string) (float64, error) {
	if s = strings.TrimSpace(s); s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// savePhotos writes uploads to the upload directory under random names and
// returns their public paths.
func (s Server) savePhotos(files []*multipart.FileHeader) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !photoExtensions[ext] {
			return paths, apperror.Validation("Invalid photos")
		}
		name := uuid.NewString() + ext
		if err := copyUpload(fh, filepath.Join(s.Settings.UploadDir, name)); err != nil {
			return paths, errors.Wrapf(err, "error saving photo: %s", fh.Filename)
		}
		paths = append(paths, "/uploads/"+name)
	}
	return paths, nil
}

// removePhotos deletes uploads written for a property that was never stored.
func (s Server) removePhotos(fn string, tid string, paths []string) {
	for _, p := range paths {
		dst := filepath.Join(s.Settings.UploadDir, strings.TrimPrefix(p, "/uploads/"))
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			s.Logger.Warnf("%s: Error removing orphaned photo: %s, err: %v, TraceID: %s", fn, dst, err, tid)
		}
	}
}

func copyUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// locate geocodes an address, falling back to the origin when the geocoder
// fails or finds nothing.
func (s Server) locate(ctx context.Context, tid string, address string) geo.Point {
	res, err := s.Geocoder.Geocode(ctx, address)
	if err != nil {
		s.Logger.Warnf("locate: Geocoding failed, using origin, address: %s, err: %v, TraceID: %s", address, err, tid)
		return geo.Point{}
	}
	return res.Point
}

// adjustCounter applies delta to one of the user's counters after the
// primary write already succeeded. A failure leaves the two out of step; it
// is logged and reported back as a warning.
func (s Server) adjustCounter(ctx context.Context, fn string, tid string, userID primitive.ObjectID, c model.UserCounter, delta int) string {
	if err := s.DB.UserCounterIncrement(ctx, userID, c, delta); err != nil {
		s.Logger.Errorf("%s: Inconsistent state, %s of User: %s not adjusted by %d, err: %v, TraceID: %s",
			fn, c, userID.Hex(), delta, err, tid)
		return inconsistentCounterWarning
	}
	return ""
}

func (s Server) propertyAdd() http.HandlerFunc {
	type response struct {
		Property     model.Property `json:"property"`
		Notification fanoutResult   `json:"notification"`
		Warning      string         `json:"warning,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "propertyAdd", err)
			return
		}

		d, files, err := s.readPropertyDetails(w, r)
		if err != nil {
			s.writeError(w, r, "propertyAdd", err)
			return
		}
		d.Normalize()
		if err = d.Validate(); err != nil {
			s.writeError(w, r, "propertyAdd", err)
			return
		}

		photos, err := s.savePhotos(files)
		if err != nil {
			s.removePhotos("propertyAdd", tid, photos)
			s.writeError(w, r, "propertyAdd", err)
			return
		}

		p := model.NewProperty(uc.user.ID, d, s.locate(r.Context(), tid, d.Address), photos, time.Now())
		if p.ID, err = s.DB.PropertyInsert(r.Context(), p); err != nil {
			s.removePhotos("propertyAdd", tid, photos)
			s.writeError(w, r, "propertyAdd", storeError(err, "Property"))
			return
		}
		s.Logger.Infof("propertyAdd: Property: %s added by User: %s, TraceID: %s", p.ID.Hex(), uc.user.ID.Hex(), tid)

		warning := s.adjustCounter(r.Context(), "propertyAdd", tid, uc.user.ID, model.CounterListings, 1)
		notification := s.notifyNewProperty(r.Context(), tid, p)

		s.writeData(w, "Property added", response{
			Property:     p,
			Notification: notification,
			Warning:      warning,
		}, http.StatusCreated)
	}
}

func (s Server) propertyGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id", "Property")
		if err != nil {
			s.writeError(w, r, "propertyGet", err)
			return
		}
		p, err := s.DB.PropertyFindByID(r.Context(), id)
		if err != nil {
			s.writeError(w, r, "propertyGet", storeError(err, "Property"))
			return
		}
		s.writeData(w, "", p, http.StatusOK)
	}
}

// ownedProperty loads the routed property and checks the caller owns it.
func (s Server) ownedProperty(r *http.Request, uc userContext) (model.Property, error) {
	id, err := pathID(r, "id", "Property")
	if err != nil {
		return model.Property{}, err
	}
	p, err := s.DB.PropertyFindByID(r.Context(), id)
	if err != nil {
		return p, storeError(err, "Property")
	}
	if !p.OwnedBy(uc.user.ID) {
		return p, apperror.Authorization("Not allowed to modify this property")
	}
	return p, nil
}

func (s Server) propertyUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "propertyUpdate", err)
			return
		}
		p, err := s.ownedProperty(r, uc)
		if err != nil {
			s.writeError(w, r, "propertyUpdate", err)
			return
		}

		d := model.PropertyDetails{}
		if err = decodeJSON(r, &d); err != nil {
			s.writeError(w, r, "propertyUpdate", err)
			return
		}
		d.Normalize()
		if err = d.Validate(); err != nil {
			s.writeError(w, r, "propertyUpdate", err)
			return
		}

		var loc *geo.Point
		if d.Address != p.Address {
			res, err := s.Geocoder.Geocode(r.Context(), d.Address)
			if err != nil {
				s.Logger.Warnf("propertyUpdate: Geocoding failed, keeping previous location of Property: %s, err: %v, TraceID: %s",
					p.ID.Hex(), err, tid)
			} else {
				loc = &res.Point
			}
		}

		updated, err := s.DB.PropertyDetailsUpdate(r.Context(), p.ID, d, loc)
		if err != nil {
			s.writeError(w, r, "propertyUpdate", storeError(err, "Property"))
			return
		}
		s.writeData(w, "Property updated", updated, http.StatusOK)
	}
}

func (s Server) propertyDelete() http.HandlerFunc {
	type response struct {
		Warning string `json:"warning,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "propertyDelete", err)
			return
		}
		p, err := s.ownedProperty(r, uc)
		if err != nil {
			s.writeError(w, r, "propertyDelete", err)
			return
		}
		if err = s.DB.PropertyDelete(r.Context(), p.ID, false); err != nil {
			s.writeError(w, r, "propertyDelete", storeError(err, "Property"))
			return
		}
		warning := s.adjustCounter(r.Context(), "propertyDelete", tid, p.OwnerID, model.CounterListings, -1)
		s.writeData(w, "Property deleted", response{Warning: warning}, http.StatusOK)
	}
}

func (s Server) propertyMarkSold() http.HandlerFunc {
	type response struct {
		ID     primitive.ObjectID `json:"id"`
		IsSold bool               `json:"isSold"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "propertyMarkSold", err)
			return
		}
		p, err := s.ownedProperty(r, uc)
		if err != nil {
			s.writeError(w, r, "propertyMarkSold", err)
			return
		}
		updated, err := s.DB.PropertySoldToggle(r.Context(), p.ID)
		if err != nil {
			s.writeError(w, r, "propertyMarkSold", storeError(err, "Property"))
			return
		}
		msg := "Property marked as available"
		if updated.IsSold {
			msg = "Property marked as sold"
		}
		s.writeData(w, msg, response{ID: updated.ID, IsSold: updated.IsSold}, http.StatusOK)
	}
}

func (s Server) propertyDeleteSold() http.HandlerFunc {
	type response struct {
		Warning string `json:"warning,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "propertyDeleteSold", err)
			return
		}
		p, err := s.ownedProperty(r, uc)
		if err != nil {
			s.writeError(w, r, "propertyDeleteSold", err)
			return
		}
		notSold := apperror.Validation("Property is not marked as sold")
		if !p.IsSold {
			s.writeError(w, r, "propertyDeleteSold", notSold)
			return
		}
		if err = s.DB.PropertyDelete(r.Context(), p.ID, true); err != nil {
			// unmarked between the read and the delete
			s.writeError(w, r, "propertyDeleteSold", storeErrorOr(err, notSold))
			return
		}
		warning := s.adjustCounter(r.Context(), "propertyDeleteSold", tid, p.OwnerID, model.CounterListings, -1)
		s.writeData(w, "Sold property deleted", response{Warning: warning}, http.StatusOK)
	}
}

// propertyVisit counts every view but records each visitor once; only the
// first visit by someone other than the owner counts as an enquiry.
func (s Server) propertyVisit() http.HandlerFunc {
	type response struct {
		FirstVisit bool `json:"firstVisit"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.writeError(w, r, "propertyVisit", err)
			return
		}
		id, err := pathID(r, "propertyId", "Property")
		if err != nil {
			s.writeError(w, r, "propertyVisit", err)
			return
		}
		p, err := s.DB.PropertyFindByID(r.Context(), id)
		if err != nil {
			s.writeError(w, r, "propertyVisit", storeError(err, "Property"))
			return
		}

		first, err := s.DB.PropertyVisitRecord(r.Context(), p.ID, uc.user.ID, time.Now())
		if err != nil {
			s.writeError(w, r, "propertyVisit", storeError(err, "Property"))
			return
		}
		if first && !p.OwnedBy(uc.user.ID) {
			s.adjustCounter(r.Context(), "propertyVisit", tid, p.OwnerID, model.CounterEnquiries, 1)
		}
		s.writeData(w, "Visit recorded", response{FirstVisit: first}, http.StatusOK)
	}
}
