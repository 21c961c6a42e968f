package customer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/domain/technician"
	"impriartex-service/internal/middleware"
	xerrors "impriartex-service/internal/pkg/errors"
	"impriartex-service/internal/pkg/jwt"
	service "impriartex-service/internal/service/customer"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type tokens map[string]identity.Identity

func (t tokens) VerifyIdentity(token string) (*jwt.Claims, identity.Identity, error) {
	id, ok := t[token]
	if !ok {
		return nil, identity.Identity{}, errors.New("token is malformed")
	}
	return &jwt.Claims{Role: string(id.Role)}, id, nil
}

type customers map[uuid.UUID]*customer.Customer

func (m customers) FindByID(_ context.Context, id uuid.UUID) (*customer.Customer, error) {
	c, ok := m[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m customers) AssignTechnician(_ context.Context, id uuid.UUID, techID *uuid.UUID) error {
	c, ok := m[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	c.AssignedTechID = techID
	return nil
}

func (m customers) ListCustomers(context.Context) ([]customer.Customer, error) {
	out := make([]customer.Customer, 0, len(m))
	for _, c := range m {
		out = append(out, *c)
	}
	return out, nil
}

type profiles map[uuid.UUID]technician.Profile

func (p profiles) FindByID(_ context.Context, id uuid.UUID) (*technician.Profile, error) {
	pr, ok := p[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &pr, nil
}

func (p profiles) ListTechnicians(context.Context) ([]technician.Profile, error) {
	var out []technician.Profile
	for _, pr := range p {
		if pr.Role == technician.RoleTag {
			out = append(out, pr)
		}
	}
	return out, nil
}

func TestCustomerHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tech := technician.Profile{ID: uuid.New(), FullName: "Ana Tech", Role: technician.RoleTag}
	client := technician.Profile{ID: uuid.New(), FullName: "Carla Client", Role: "client"}
	cityHall := &customer.Customer{ID: uuid.New(), Name: "City Hall"}
	store := customers{cityHall.ID: cityHall}

	h := NewCustomerHandler(service.NewCustomerService(store, profiles{tech.ID: tech, client.ID: client}, nil, zap.NewNop()))
	auth := middleware.NewAuthMiddleware(tokens{
		"sup":  {ID: uuid.New(), Role: identity.RoleSupervisor},
		"tech": {ID: tech.ID, Role: identity.RoleTechnician},
	}, nil, zap.NewNop())

	r := gin.New()
	r.GET("/customers", auth.Auth(), h.ListCustomers)
	r.PUT("/customers/:id/technician", auth.Auth(), h.AssignTechnician)
	r.GET("/technicians", auth.Auth(), h.ListTechnicians)

	tests := []struct {
		name         string
		method       string
		path         string
		token        string
		body         string
		expectedCode int
	}{
		{"list customers", http.MethodGet, "/customers", "tech", "", http.StatusOK},
		{"list technicians", http.MethodGet, "/technicians", "tech", "", http.StatusOK},
		{"assign as technician", http.MethodPut, "/customers/" + cityHall.ID.String() + "/technician", "tech", `{"technician_id":"` + tech.ID.String() + `"}`, http.StatusForbidden},
		{"assign non technician", http.MethodPut, "/customers/" + cityHall.ID.String() + "/technician", "sup", `{"technician_id":"` + client.ID.String() + `"}`, http.StatusBadRequest},
		{"assign unknown customer", http.MethodPut, "/customers/" + uuid.NewString() + "/technician", "sup", `{"technician_id":"` + tech.ID.String() + `"}`, http.StatusNotFound},
		{"assign bad id", http.MethodPut, "/customers/x/technician", "sup", `{}`, http.StatusBadRequest},
		{"assign technician", http.MethodPut, "/customers/" + cityHall.ID.String() + "/technician", "sup", `{"technician_id":"` + tech.ID.String() + `"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedCode, w.Code, w.Body.String())
		})
	}

	if assert.NotNil(t, cityHall.AssignedTechID) {
		assert.Equal(t, tech.ID, *cityHall.AssignedTechID)
	}

	// clearing the assignment
	req := httptest.NewRequest(http.MethodPut, "/customers/"+cityHall.ID.String()+"/technician", strings.NewReader(`{"technician_id":null}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer sup")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, cityHall.AssignedTechID)
}
