package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"portfolio/api/internal/portfolio"
)

const (
	bearerScheme     = "bearer"
	defaultPageLimit = 100
)

type resourceOptions[T any] struct {
	tag      string
	singular string
	// publicFilters restrict listings for anonymous callers.
	publicFilters map[string]any
	// visible hides individual records from anonymous callers.
	visible func(item *T) bool
}

// listQuery is implemented by every list input; filters returns column equality matches.
type listQuery interface {
	page() (limit, offset int)
	filters() map[string]any
}

type listInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"200" doc:"Maximum number of records to return (default 100)."`
	Offset int `query:"offset" minimum:"0"`
}

func (in listInput) page() (int, int) {
	limit := in.Limit
	if limit == 0 {
		limit = defaultPageLimit
	}
	return limit, in.Offset
}

func (listInput) filters() map[string]any { return nil }

type projectListInput struct {
	listInput
	CompanyID string `query:"company_id" maxLength:"36"`
	Featured  string `query:"featured" enum:"true,false"`
}

func (in projectListInput) filters() map[string]any {
	filters := map[string]any{}
	if in.CompanyID != "" {
		filters["company_id"] = in.CompanyID
	}
	if in.Featured != "" {
		filters["featured"] = in.Featured == "true"
	}
	return filters
}

type skillListInput struct {
	listInput
	Category string `query:"category" maxLength:"100"`
}

func (in skillListInput) filters() map[string]any {
	if in.Category == "" {
		return nil
	}
	return map[string]any{"category": in.Category}
}

type documentListInput struct {
	listInput
	Kind     string `query:"kind" enum:"resume,certificate,publication,other"`
	IsPublic string `query:"is_public" enum:"true,false"`
}

func (in documentListInput) filters() map[string]any {
	filters := map[string]any{}
	if in.Kind != "" {
		filters["kind"] = in.Kind
	}
	if in.IsPublic != "" {
		filters["is_public"] = in.IsPublic == "true"
	}
	return filters
}

// mergeFilters overlays restrict on requested. ok is false when a requested value
// contradicts a restriction, in which case nothing can match.
func mergeFilters(requested, restrict map[string]any) (map[string]any, bool) {
	if len(restrict) == 0 {
		return requested, true
	}
	merged := make(map[string]any, len(requested)+len(restrict))
	for key, value := range requested {
		merged[key] = value
	}
	for key, value := range restrict {
		if current, ok := merged[key]; ok && current != value {
			return nil, false
		}
		merged[key] = value
	}
	return merged, true
}

type idInput struct {
	ID string `path:"id" maxLength:"36"`
}

type listOutput[T any] struct {
	Body struct {
		Items  []T   `json:"items"`
		Total  int64 `json:"total"`
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
	}
}

type itemOutput[T any] struct {
	Body *T
}

type createInput[I any] struct {
	Body I
}

type updateInput[I any] struct {
	ID   string `path:"id" maxLength:"36"`
	Body I
}

type reorderInput struct {
	Body struct {
		IDs []string `json:"ids" minItems:"1" doc:"Every record id in the desired display order."`
	}
}

func adminOperation(s *Server, op huma.Operation) huma.Operation {
	op.Middlewares = append(op.Middlewares, s.requireAdmin)
	op.Security = []map[string][]string{{bearerScheme: {}}}
	return op
}

// registerResource exposes list/get publicly and create/update/delete/reorder to admins.
// Q is the list input carrying the resource's query filters.
func registerResource[T any, I portfolio.Input[T], Q listQuery](s *Server, svc portfolio.ResourceService[T, I], opts resourceOptions[T]) {
	name := svc.Name()
	base := apiPrefix + "/" + name
	singular := opts.singular
	tags := []string{opts.tag}

	huma.Register(s.api, huma.Operation{
		OperationID: "list-" + name,
		Method:      stdhttp.MethodGet,
		Path:        base,
		Summary:     "List " + name,
		Tags:        tags,
	}, func(ctx context.Context, input *Q) (*listOutput[T], error) {
		limit, offset := (*input).page()

		out := &listOutput[T]{}
		out.Body.Items = []T{}
		out.Body.Limit = limit
		out.Body.Offset = offset

		filters := (*input).filters()
		if !isAdmin(ctx) {
			var ok bool
			if filters, ok = mergeFilters(filters, opts.publicFilters); !ok {
				return out, nil
			}
		}

		items, err := svc.List(ctx, portfolio.ListOptions{Filters: filters, Limit: limit, Offset: offset})
		if err != nil {
			return nil, s.toHTTPError(ctx, err, "listing "+name, nil)
		}
		total, err := svc.Count(ctx, filters)
		if err != nil {
			return nil, s.toHTTPError(ctx, err, "counting "+name, nil)
		}

		if items != nil {
			out.Body.Items = items
		}
		out.Body.Total = total
		return out, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-" + singular,
		Method:      stdhttp.MethodGet,
		Path:        base + "/{id}",
		Summary:     "Get one of " + name,
		Tags:        tags,
		Errors:      []int{stdhttp.StatusNotFound},
	}, func(ctx context.Context, input *idInput) (*itemOutput[T], error) {
		item, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, s.toHTTPError(ctx, err, "loading "+singular, logrus.Fields{"id": input.ID})
		}
		if opts.visible != nil && !isAdmin(ctx) && !opts.visible(item) {
			return nil, huma.Error404NotFound("resource not found")
		}
		return &itemOutput[T]{Body: item}, nil
	})

	huma.Register(s.api, adminOperation(s, huma.Operation{
		OperationID:   "create-" + singular,
		Method:        stdhttp.MethodPost,
		Path:          base,
		Summary:       "Create one of " + name,
		Tags:          tags,
		DefaultStatus: stdhttp.StatusCreated,
		Errors:        []int{stdhttp.StatusConflict, stdhttp.StatusUnprocessableEntity},
	}), func(ctx context.Context, input *createInput[I]) (*itemOutput[T], error) {
		item, err := svc.Create(ctx, input.Body)
		if err != nil {
			return nil, s.toHTTPError(ctx, err, "creating "+singular, nil)
		}
		return &itemOutput[T]{Body: item}, nil
	})

	huma.Register(s.api, adminOperation(s, huma.Operation{
		OperationID:   "reorder-" + name,
		Method:        stdhttp.MethodPut,
		Path:          base + "/order",
		Summary:       "Set the display order of " + name,
		Tags:          tags,
		DefaultStatus: stdhttp.StatusNoContent,
		Errors:        []int{stdhttp.StatusNotFound, stdhttp.StatusUnprocessableEntity},
	}), func(ctx context.Context, input *reorderInput) (*struct{}, error) {
		if err := svc.Reorder(ctx, input.Body.IDs); err != nil {
			return nil, s.toHTTPError(ctx, err, "reordering "+name, nil)
		}
		return nil, nil
	})

	huma.Register(s.api, adminOperation(s, huma.Operation{
		OperationID: "update-" + singular,
		Method:      stdhttp.MethodPut,
		Path:        base + "/{id}",
		Summary:     "Replace one of " + name,
		Tags:        tags,
		Errors:      []int{stdhttp.StatusNotFound, stdhttp.StatusConflict, stdhttp.StatusUnprocessableEntity},
	}), func(ctx context.Context, input *updateInput[I]) (*itemOutput[T], error) {
		item, err := svc.Update(ctx, input.ID, input.Body)
		if err != nil {
			return nil, s.toHTTPError(ctx, err, "updating "+singular, logrus.Fields{"id": input.ID})
		}
		return &itemOutput[T]{Body: item}, nil
	})

	huma.Register(s.api, adminOperation(s, huma.Operation{
		OperationID:   "delete-" + singular,
		Method:        stdhttp.MethodDelete,
		Path:          base + "/{id}",
		Summary:       "Delete one of " + name,
		Tags:          tags,
		DefaultStatus: stdhttp.StatusNoContent,
		Errors:        []int{stdhttp.StatusNotFound},
	}), func(ctx context.Context, input *idInput) (*struct{}, error) {
		if err := svc.Delete(ctx, input.ID); err != nil {
			return nil, s.toHTTPError(ctx, err, "deleting "+singular, logrus.Fields{"id": input.ID})
		}
		return nil, nil
	})
}
