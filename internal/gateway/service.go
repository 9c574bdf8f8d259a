package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/gateway/store"
)

// ErrInvalidRequest indicates a request envelope the gateway cannot translate.
var ErrInvalidRequest = errors.New("invalid gateway request")

// Service translates abstract put/get/query/scan/update/delete envelopes into
// the underlying store's native requests. It is stateless between calls;
// concurrent callers may target the same key and last writer wins.
type Service struct {
	exec store.Executor
}

// NewService builds a gateway over the given executor.
func NewService(exec store.Executor) *Service {
	return &Service{exec: exec}
}

// Execute dispatches one request on its operation.
func (s *Service) Execute(ctx context.Context, req Request) (Response, error) {
	if req.Table == "" {
		return Response{}, fmt.Errorf("%w: tableName is required", ErrInvalidRequest)
	}

	switch req.Operation {
	case OpPut:
		return s.put(ctx, req)
	case OpGet:
		return s.get(ctx, req)
	case OpUpdate:
		return s.update(ctx, req)
	case OpDelete:
		return s.del(ctx, req)
	case OpQuery:
		return s.query(ctx, req)
	case OpScan:
		return s.scan(ctx, req)
	default:
		return Response{}, fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, req.Operation)
	}
}

func (s *Service) put(ctx context.Context, req Request) (Response, error) {
	if len(req.Item) == 0 {
		return Response{}, fmt.Errorf("%w: put requires item", ErrInvalidRequest)
	}
	key, err := itemKey(req)
	if err != nil {
		return Response{}, err
	}
	if err := s.exec.PutItem(ctx, store.PutInput{Table: req.Table, Key: key, Item: req.Item}); err != nil {
		return Response{}, err
	}
	return Response{Success: true}, nil
}

func (s *Service) get(ctx context.Context, req Request) (Response, error) {
	if len(req.Key) == 0 {
		return Response{}, fmt.Errorf("%w: get requires key", ErrInvalidRequest)
	}
	out, err := s.exec.GetItem(ctx, store.GetInput{Table: req.Table, Key: req.Key, ConsistentRead: req.ConsistentRead})
	if err != nil {
		return Response{}, err
	}
	resp := Response{Success: true}
	if out.Found {
		resp.Items = []map[string]any{out.Item}
	}
	return resp, nil
}

func (s *Service) update(ctx context.Context, req Request) (Response, error) {
	if len(req.Key) == 0 || len(req.Updates) == 0 {
		return Response{}, fmt.Errorf("%w: update requires key and updates", ErrInvalidRequest)
	}
	fragments, names, values := aliasFields(req.Updates)
	in := store.UpdateInput{
		Table:            req.Table,
		Key:              req.Key,
		UpdateExpression: "SET " + strings.Join(fragments, ", "),
		ExpressionNames:  names,
		ExpressionValues: values,
	}
	if err := s.exec.UpdateItem(ctx, in); err != nil {
		return Response{}, err
	}
	return Response{Success: true}, nil
}

func (s *Service) del(ctx context.Context, req Request) (Response, error) {
	if len(req.Key) == 0 {
		return Response{}, fmt.Errorf("%w: delete requires key", ErrInvalidRequest)
	}
	if err := s.exec.DeleteItem(ctx, store.DeleteInput{Table: req.Table, Key: req.Key}); err != nil {
		return Response{}, err
	}
	return Response{Success: true}, nil
}

func (s *Service) query(ctx context.Context, req Request) (Response, error) {
	if len(req.Key) == 0 {
		return Response{}, fmt.Errorf("%w: query requires key conditions", ErrInvalidRequest)
	}
	startKey, err := decodeCursor(req.Cursor)
	if err != nil {
		return Response{}, err
	}
	fragments, names, values := aliasFields(req.Key)
	page, err := s.exec.Query(ctx, store.QueryInput{
		Table:            req.Table,
		Index:            req.Index,
		KeyCondition:     strings.Join(fragments, " AND "),
		ExpressionNames:  names,
		ExpressionValues: values,
		Limit:            req.Limit,
		StartKey:         startKey,
	})
	if err != nil {
		return Response{}, err
	}
	return pageResponse(page)
}

func (s *Service) scan(ctx context.Context, req Request) (Response, error) {
	startKey, err := decodeCursor(req.Cursor)
	if err != nil {
		return Response{}, err
	}
	in := store.ScanInput{Table: req.Table, Limit: req.Limit, StartKey: startKey}
	if len(req.Filters) > 0 {
		fragments, names, values := aliasFields(req.Filters)
		in.Filter = strings.Join(fragments, " AND ")
		in.ExpressionNames = names
		in.ExpressionValues = values
	}
	page, err := s.exec.Scan(ctx, in)
	if err != nil {
		return Response{}, err
	}
	return pageResponse(page)
}

func pageResponse(page store.Page) (Response, error) {
	cursor, err := encodeCursor(page.LastKey)
	if err != nil {
		return Response{}, err
	}
	return Response{Success: true, Items: page.Items, Cursor: cursor}, nil
}

// itemKey derives the primary key of a put. An explicit key wins; otherwise
// the conventional "id" attribute of the item is used.
func itemKey(req Request) (map[string]any, error) {
	if len(req.Key) > 0 {
		return req.Key, nil
	}
	if id, ok := req.Item["id"]; ok {
		return map[string]any{"id": id}, nil
	}
	return nil, fmt.Errorf("%w: put requires key or an item with an id attribute", ErrInvalidRequest)
}
