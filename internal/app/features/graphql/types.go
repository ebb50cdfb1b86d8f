package graphql

import (
	"encoding/json"
	"time"

	gql "github.com/graph-gophers/graphql-go"

	"github.com/dalemusser/voluntahub/internal/app/resolvers"
	"github.com/dalemusser/voluntahub/internal/app/store/audit"
	"github.com/dalemusser/voluntahub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

type usuarioResolver struct {
	u models.User
}

func (r *usuarioResolver) ID() gql.ID     { return gql.ID(r.u.ID.Hex()) }
func (r *usuarioResolver) Nombre() string { return r.u.Name }
func (r *usuarioResolver) Email() string  { return r.u.Email }
func (r *usuarioResolver) Role() string   { return string(r.u.Role) }

type voluntariadoResolver struct {
	p models.Posting
}

func (r *voluntariadoResolver) ID() gql.ID          { return gql.ID(r.p.ID.Hex()) }
func (r *voluntariadoResolver) Titulo() string      { return r.p.Title }
func (r *voluntariadoResolver) Usuario() string     { return r.p.OwnerEmail }
func (r *voluntariadoResolver) Fecha() string       { return r.p.Date }
func (r *voluntariadoResolver) Descripcion() string { return r.p.Description }
func (r *voluntariadoResolver) Tipo() string        { return string(r.p.Kind) }

// DescripcionHTML renders the stored description for clients that inject
// HTML. Plain text is escaped and paragraphed; markup is sanitized.
func (r *voluntariadoResolver) DescripcionHTML() string {
	return string(htmlsanitize.PrepareForDisplay(r.p.Description))
}

func (r *voluntariadoResolver) Imagen() *string {
	if r.p.Image == "" {
		return nil
	}
	img := r.p.Image
	return &img
}

type authPayloadResolver struct {
	token     string
	expiresAt time.Time
	user      models.User
}

func (r *authPayloadResolver) Token() string    { return r.token }
func (r *authPayloadResolver) ExpiraEn() string { return r.expiresAt.UTC().Format(time.RFC3339) }
func (r *authPayloadResolver) Usuario() *usuarioResolver {
	return &usuarioResolver{u: r.user}
}

type eventoAuditoriaResolver struct {
	e audit.Event
}

func (r *eventoAuditoriaResolver) ID() gql.ID { return gql.ID(r.e.ID.Hex()) }
func (r *eventoAuditoriaResolver) Fecha() string {
	return r.e.Timestamp.UTC().Format(time.RFC3339)
}
func (r *eventoAuditoriaResolver) Categoria() string     { return r.e.Category }
func (r *eventoAuditoriaResolver) Tipo() string          { return r.e.EventType }
func (r *eventoAuditoriaResolver) UsuarioID() *string    { return optional(r.e.UserID) }
func (r *eventoAuditoriaResolver) UsuarioEmail() *string { return optional(r.e.UserEmail) }
func (r *eventoAuditoriaResolver) ActorID() *string      { return optional(r.e.ActorID) }
func (r *eventoAuditoriaResolver) ActorEmail() *string   { return optional(r.e.ActorEmail) }
func (r *eventoAuditoriaResolver) IP() string            { return r.e.IP }
func (r *eventoAuditoriaResolver) Exito() bool           { return r.e.Success }
func (r *eventoAuditoriaResolver) Motivo() *string       { return optional(r.e.FailureReason) }

// Detalles is the details map as a JSON object, or null when there are none.
func (r *eventoAuditoriaResolver) Detalles() *string {
	if len(r.e.Details) == 0 {
		return nil
	}
	b, err := json.Marshal(r.e.Details)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

type paginaAuditoriaResolver struct {
	page resolvers.AuditPage
}

func (r *paginaAuditoriaResolver) Total() int32 { return int32(r.page.Total) }
func (r *paginaAuditoriaResolver) Eventos() []*eventoAuditoriaResolver {
	return toEventos(r.page.Events)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toEventos(events []audit.Event) []*eventoAuditoriaResolver {
	out := make([]*eventoAuditoriaResolver, 0, len(events))
	for _, e := range events {
		out = append(out, &eventoAuditoriaResolver{e: e})
	}
	return out
}

func toUsuarios(users []models.User) []*usuarioResolver {
	out := make([]*usuarioResolver, 0, len(users))
	for _, u := range users {
		out = append(out, &usuarioResolver{u: u})
	}
	return out
}

func toVoluntariados(postings []models.Posting) []*voluntariadoResolver {
	out := make([]*voluntariadoResolver, 0, len(postings))
	for _, p := range postings {
		out = append(out, &voluntariadoResolver{p: p})
	}
	return out
}
