package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hupe1980/pointcount"
	"github.com/hupe1980/pointcount/geom"
)

type userJSON struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	UserURL string  `json:"user_url"`
}

// usersURL is the absolute URL of the users collection.
func (s *Server) usersURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s/users", scheme, r.Host, s.opts.BasePath)
}

func (s *Server) userURL(r *http.Request, id geom.ID) string {
	return s.usersURL(r) + "/" + strconv.FormatUint(uint64(id), 10)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	n, err := s.db.Info(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"user_count": n}))
}

func (s *Server) page(r *http.Request) ([]geom.Point, error) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		return nil, err
	}
	size, err := queryInt(r, "pagesize", s.opts.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	if size > s.opts.MaxPageSize {
		size = s.opts.MaxPageSize
	}
	return s.db.List(r.Context(), page, size)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	pts, err := s.page(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(pts) == 0 {
		writeJSON(w, http.StatusNotFound, message("Users not found"))
		return
	}

	users := make(map[string]userJSON, len(pts))
	for _, p := range pts {
		users[strconv.FormatUint(uint64(p.ID), 10)] = userJSON{X: p.X, Y: p.Y, UserURL: s.userURL(r, p.ID)}
	}
	writeJSON(w, http.StatusOK, ok(envelope{"users": users}))
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	pts, err := s.page(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, p := range pts {
		f := geojson.NewFeature(orb.Point{p.X, p.Y})
		f.ID = uint64(p.ID)
		f.Properties["user_url"] = s.userURL(r, p.ID)
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := s.decodeBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	x, hasX, err := coordinate(body, "x")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	y, hasY, err := coordinate(body, "y")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !hasX || !hasY {
		s.writeError(w, r, badRequest("x and y keys are required."))
		return
	}

	p, err := s.db.Insert(r.Context(), x, y)
	if err != nil {
		if errors.Is(err, pointcount.ErrConflict) {
			writeJSON(w, http.StatusConflict, message(fmt.Sprintf("Conflict. User (%g, %g) exists", x, y)))
			return
		}
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		"message":  "Created",
		"user_url": s.userURL(r, p.ID),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.db.Get(r.Context(), id)
	if err != nil {
		s.writeUserError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"x": p.X, "y": p.Y}))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Unknown users are reported before the body is looked at.
	if _, err := s.db.Get(r.Context(), id); err != nil {
		s.writeUserError(w, r, id, err)
		return
	}

	body, err := s.decodeBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var patch pointcount.Patch
	for key, dst := range map[string]**float64{"x": &patch.X, "y": &patch.Y} {
		v, present, err := coordinate(body, key)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if present {
			*dst = &v
		}
	}
	if patch.Empty() {
		s.writeError(w, r, badRequest("x or y keys are required."))
		return
	}

	if _, err := s.db.Update(r.Context(), id, patch); err != nil {
		s.writeUserError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"user_url": s.userURL(r, id)}))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.db.Delete(r.Context(), id); err != nil {
		s.writeUserError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, message("OK"))
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	q, err := countQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	n, err := s.db.Count(r.Context(), q)
	if err != nil {
		s.writeUserError(w, r, q.Center, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"result": n}))
}

// writeUserError reports ErrNotFound in the "User <id> not found" form.
func (s *Server) writeUserError(w http.ResponseWriter, r *http.Request, id geom.ID, err error) {
	if errors.Is(err, pointcount.ErrNotFound) {
		err = userNotFound(id)
	}
	s.writeError(w, r, err)
}
