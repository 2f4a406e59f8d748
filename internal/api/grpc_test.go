package api_test

import (
	"context"
	"net"
	"testing"

	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/victornm/quizroom/internal/api"
	"github.com/victornm/quizroom/internal/auth"
	"github.com/victornm/quizroom/internal/domain"
)

func dialGRPC(t *testing.T) (*fixture, *grpc.ClientConn) {
	t.Helper()

	gs := grpc.NewServer(grpc.UnaryInterceptor(grpcauth.UnaryServerInterceptor(auth.GRPCAuthFunc(newAuthn()))))
	f := setup(t, gs)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	return f, cc
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func TestGRPC_QuizJoinFlow(t *testing.T) {
	f, cc := dialGRPC(t)
	teacher := withToken(context.Background(), f.token(t, "teacher-1", auth.RoleTeacher))
	student := withToken(context.Background(), f.token(t, "stu-1", auth.RoleStudent))

	var q domain.QuizDTO
	res, err := api.Invoke(teacher, cc, "CreateQuiz", capitals, &q)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, q.QuestionCount)

	var joined api.JoinResponse
	res, err = api.Invoke(student, cc, "JoinSession", &api.QuizRequest{QuizID: q.ID}, &joined)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	require.NotEmpty(t, joined.SessionID)

	var answer api.SubmitAnswerResponse
	res, err = api.Invoke(student, cc, "SubmitAnswer", &api.SubmitAnswerRequest{
		SessionID:  joined.SessionID,
		QuestionID: "q1",
		AnswerID:   "A",
	}, &answer)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, answer.TotalScore)

	var participants api.ParticipantsResponse
	res, err = api.Invoke(teacher, cc, "GetSessionParticipants", &api.SessionRequest{SessionID: joined.SessionID}, &participants)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"stu-1"}, participants.StudentIDs)

	res, err = api.Invoke(teacher, cc, "CompleteSession", &api.SessionRequest{SessionID: joined.SessionID}, nil)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	res, err = api.Invoke(teacher, cc, "CompleteSession", &api.SessionRequest{SessionID: joined.SessionID}, nil)
	require.NoError(t, err, "business failures must come back as a result, not a status")
	assert.False(t, res.Success)
	assert.Equal(t, "session is not active", res.Error)
}

func TestGRPC_Failures(t *testing.T) {
	f, cc := dialGRPC(t)
	student := withToken(context.Background(), f.token(t, "stu-1", auth.RoleStudent))

	res, err := api.Invoke(student, cc, "StartSession", &api.QuizRequest{QuizID: "quiz-1"}, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "requires role teacher")

	res, err = api.Invoke(student, cc, "JoinByCode", &api.CodeRequest{Code: "ZZZZZZ"}, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "quiz not found with the provided code", res.Error)

	_, err = api.Invoke(context.Background(), cc, "GetSession", &api.SessionRequest{SessionID: "s1"}, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "missing credentials are rejected by the transport")
}
