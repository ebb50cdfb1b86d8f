package graphql

import (
	"context"
	"time"

	gql "github.com/graph-gophers/graphql-go"

	"github.com/dalemusser/voluntahub/internal/app/resolvers"
	"github.com/dalemusser/voluntahub/internal/app/store/audit"
	"github.com/dalemusser/voluntahub/internal/app/system/apperr"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

// Backend is the set of operations the schema is bound to.
// *resolvers.Service satisfies it.
type Backend interface {
	Login(ctx context.Context, email, password string) (*resolvers.LoginResult, error)
	CreateUser(ctx context.Context, in resolvers.CreateUserInput) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	DeleteUserByEmail(ctx context.Context, email string) (bool, error)
	DeleteUserByIndex(ctx context.Context, index int) (string, error)

	CreatePosting(ctx context.Context, in resolvers.CreatePostingInput) (*models.Posting, error)
	ListPostings(ctx context.Context) ([]models.Posting, error)
	GetPostingByID(ctx context.Context, id string) (*models.Posting, error)
	UpdatePosting(ctx context.Context, id string, patch models.PostingPatch) (*models.Posting, error)
	UpdatePostingByIndex(ctx context.Context, index int, patch models.PostingPatch) (*models.Posting, error)
	DeletePosting(ctx context.Context, id string) (string, error)
	DeletePostingByIndex(ctx context.Context, index int) (string, error)

	ListAuditEvents(ctx context.Context, q resolvers.AuditQuery) (*resolvers.AuditPage, error)
	ListFailedLogins(ctx context.Context, since *time.Time, limit int) ([]audit.Event, error)
}

// rootResolver resolves both Query and Mutation fields.
type rootResolver struct {
	b Backend
}

// ---- Query ----

func (r *rootResolver) Usuarios(ctx context.Context) ([]*usuarioResolver, error) {
	users, err := r.b.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return toUsuarios(users), nil
}

func (r *rootResolver) UsuarioPorEmail(ctx context.Context, args struct{ Email string }) (*usuarioResolver, error) {
	u, err := r.b.GetUserByEmail(ctx, args.Email)
	if err != nil || u == nil {
		return nil, err
	}
	return &usuarioResolver{u: *u}, nil
}

func (r *rootResolver) Voluntariados(ctx context.Context) ([]*voluntariadoResolver, error) {
	postings, err := r.b.ListPostings(ctx)
	if err != nil {
		return nil, err
	}
	return toVoluntariados(postings), nil
}

func (r *rootResolver) VoluntariadoPorID(ctx context.Context, args struct{ ID gql.ID }) (*voluntariadoResolver, error) {
	p, err := r.b.GetPostingByID(ctx, string(args.ID))
	if err != nil {
		return nil, err
	}
	return &voluntariadoResolver{p: *p}, nil
}

type eventosAuditoriaArgs struct {
	Email          *string
	Categoria      *string
	Tipo           *string
	Desde          *string
	Hasta          *string
	Limite         *int32
	Desplazamiento *int32
}

func (r *rootResolver) EventosAuditoria(ctx context.Context, args eventosAuditoriaArgs) (*paginaAuditoriaResolver, error) {
	since, err := parseTime("desde", args.Desde)
	if err != nil {
		return nil, err
	}
	until, err := parseTime("hasta", args.Hasta)
	if err != nil {
		return nil, err
	}
	page, err := r.b.ListAuditEvents(ctx, resolvers.AuditQuery{
		Email:     deref(args.Email),
		Category:  deref(args.Categoria),
		EventType: deref(args.Tipo),
		Since:     since,
		Until:     until,
		Limit:     derefInt(args.Limite),
		Offset:    derefInt(args.Desplazamiento),
	})
	if err != nil {
		return nil, err
	}
	return &paginaAuditoriaResolver{page: *page}, nil
}

func (r *rootResolver) LoginsFallidos(ctx context.Context, args struct {
	Desde  *string
	Limite *int32
}) ([]*eventoAuditoriaResolver, error) {
	since, err := parseTime("desde", args.Desde)
	if err != nil {
		return nil, err
	}
	events, err := r.b.ListFailedLogins(ctx, since, derefInt(args.Limite))
	if err != nil {
		return nil, err
	}
	return toEventos(events), nil
}

// parseTime reads an optional RFC 3339 argument.
func parseTime(arg string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, apperr.New(apperr.InvalidArgument, "%s must be an RFC 3339 time", arg)
	}
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int32) int {
	if n == nil {
		return 0
	}
	return int(*n)
}

// ---- Mutation: users ----

type crearUsuarioArgs struct {
	Nombre   string
	Email    string
	Password string
	Role     *string
}

func (r *rootResolver) CrearUsuario(ctx context.Context, args crearUsuarioArgs) (*usuarioResolver, error) {
	if err := writable(ctx); err != nil {
		return nil, err
	}
	u, err := r.b.CreateUser(ctx, resolvers.CreateUserInput{
		Name:     args.Nombre,
		Email:    args.Email,
		Password: args.Password,
		Role:     args.Role,
	})
	if err != nil {
		return nil, err
	}
	return &usuarioResolver{u: *u}, nil
}

func (r *rootResolver) BorrarUsuarioPorEmail(ctx context.Context, args struct{ Email string }) (bool, error) {
	if err := writable(ctx); err != nil {
		return false, err
	}
	return r.b.DeleteUserByEmail(ctx, args.Email)
}

func (r *rootResolver) BorrarUsuarioPorIndice(ctx context.Context, args struct{ Indice int32 }) (gql.ID, error) {
	if err := writable(ctx); err != nil {
		return "", err
	}
	id, err := r.b.DeleteUserByIndex(ctx, int(args.Indice))
	return gql.ID(id), err
}

func (r *rootResolver) Login(ctx context.Context, args struct {
	Email    string
	Password string
}) (*authPayloadResolver, error) {
	if err := writable(ctx); err != nil {
		return nil, err
	}
	res, err := r.b.Login(ctx, args.Email, args.Password)
	if err != nil {
		return nil, err
	}
	return &authPayloadResolver{token: res.Token, expiresAt: res.ExpiresAt, user: res.User}, nil
}

// ---- Mutation: postings ----

type crearVoluntariadoArgs struct {
	Titulo      string
	Fecha       string
	Descripcion string
	Tipo        string
	Imagen      *string
	Usuario     *string
}

func (r *rootResolver) CrearVoluntariado(ctx context.Context, args crearVoluntariadoArgs) (*voluntariadoResolver, error) {
	if err := writable(ctx); err != nil {
		return nil, err
	}
	p, err := r.b.CreatePosting(ctx, resolvers.CreatePostingInput{
		Title:       args.Titulo,
		Date:        args.Fecha,
		Description: args.Descripcion,
		Kind:        args.Tipo,
		Image:       args.Imagen,
		OwnerEmail:  args.Usuario,
	})
	if err != nil {
		return nil, err
	}
	return &voluntariadoResolver{p: *p}, nil
}

// cambios holds the optional fields shared by both update mutations.
type cambios struct {
	Titulo      *string
	Fecha       *string
	Descripcion *string
	Tipo        *string
	Imagen      *string
}

func (c cambios) patch() models.PostingPatch {
	p := models.PostingPatch{
		Title:       c.Titulo,
		Date:        c.Fecha,
		Description: c.Descripcion,
		Image:       c.Imagen,
	}
	if c.Tipo != nil {
		k := models.Kind(*c.Tipo)
		p.Kind = &k
	}
	return p
}

type actualizarArgs struct {
	ID          gql.ID
	Titulo      *string
	Fecha       *string
	Descripcion *string
	Tipo        *string
	Imagen      *string
}

type actualizarPorIndiceArgs struct {
	Indice      int32
	Titulo      *string
	Fecha       *string
	Descripcion *string
	Tipo        *string
	Imagen      *string
}

func (r *rootResolver) ActualizarVoluntariado(ctx context.Context, args actualizarArgs) (*voluntariadoResolver, error) {
	if err := writable(ctx); err != nil {
		return nil, err
	}
	c := cambios{args.Titulo, args.Fecha, args.Descripcion, args.Tipo, args.Imagen}
	p, err := r.b.UpdatePosting(ctx, string(args.ID), c.patch())
	if err != nil {
		return nil, err
	}
	return &voluntariadoResolver{p: *p}, nil
}

func (r *rootResolver) ActualizarVoluntariadoPorIndice(ctx context.Context, args actualizarPorIndiceArgs) (*voluntariadoResolver, error) {
	if err := writable(ctx); err != nil {
		return nil, err
	}
	c := cambios{args.Titulo, args.Fecha, args.Descripcion, args.Tipo, args.Imagen}
	p, err := r.b.UpdatePostingByIndex(ctx, int(args.Indice), c.patch())
	if err != nil {
		return nil, err
	}
	return &voluntariadoResolver{p: *p}, nil
}

func (r *rootResolver) EliminarVoluntariado(ctx context.Context, args struct{ ID gql.ID }) (gql.ID, error) {
	if err := writable(ctx); err != nil {
		return "", err
	}
	id, err := r.b.DeletePosting(ctx, string(args.ID))
	return gql.ID(id), err
}

func (r *rootResolver) EliminarVoluntariadoPorIndice(ctx context.Context, args struct{ Indice int32 }) (gql.ID, error) {
	if err := writable(ctx); err != nil {
		return "", err
	}
	id, err := r.b.DeletePostingByIndex(ctx, int(args.Indice))
	return gql.ID(id), err
}
