package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/victornm/quizroom/internal/errors"
)

const (
	ServiceName = "quizroom.v1.QuizroomService"

	// CodecName is the content-subtype clients must request, e.g. grpc.CallContentSubtype(CodecName).
	CodecName = "json"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec carries the API's request and result structs as JSON on the gRPC transport.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }

// Every method answers with an errors.Result; operation failures never become gRPC status errors.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Operations)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateQuiz", Operations.CreateQuiz),
		unary("GetQuiz", Operations.GetQuiz),
		unary("GetQuizByCode", Operations.GetQuizByCode),
		unary("ListMyQuizzes", Operations.ListMyQuizzes),
		unary("ListPublicQuizzes", Operations.ListPublicQuizzes),
		unary("UpdateQuiz", Operations.UpdateQuiz),
		unary("DeleteQuiz", Operations.DeleteQuiz),
		unary("RegenerateCode", Operations.RegenerateCode),
		unary("StartSession", Operations.StartSession),
		unary("ListQuizSessions", Operations.ListQuizSessions),
		unary("ListMySessions", Operations.ListMySessions),
		unary("JoinSession", Operations.JoinSession),
		unary("JoinByCode", Operations.JoinByCode),
		unary("GetSession", Operations.GetSession),
		unary("CompleteSession", Operations.CompleteSession),
		unary("CancelSession", Operations.CancelSession),
		unary("GetSessionParticipants", Operations.GetSessionParticipants),
		unary("SubmitAnswer", Operations.SubmitAnswer),
		unary("GetResults", Operations.GetResults),
		unary("GetLeaderboard", Operations.GetLeaderboard),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quizroom/v1",
}

// FullMethod returns the gRPC method path of an operation.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, op func(Operations, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := op(srv.(Operations), ctx, req.(*Req))
				res, _ := result(ctx, resp, err)
				return &res, nil
			}

			if interceptor == nil {
				return handler(ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Invoke calls an operation on a connection using the JSON codec and decodes the result data into out.
// It returns the decoded result so callers can inspect Success and Error.
func Invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in, out any, opts ...grpc.CallOption) (*errors.Result, error) {
	var raw struct {
		Success bool            `json:"success"`
		Error   string          `json:"error"`
		Data    json.RawMessage `json:"data"`
	}

	opts = append(opts, grpc.CallContentSubtype(CodecName))
	if err := cc.Invoke(ctx, FullMethod(method), in, &raw, opts...); err != nil {
		return nil, err
	}

	res := &errors.Result{Success: raw.Success, Error: raw.Error}
	if out != nil && len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, out); err != nil {
			return nil, err
		}
		res.Data = out
	}

	return res, nil
}
