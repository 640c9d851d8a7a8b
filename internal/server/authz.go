package server

import (
	"context"
	"strings"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/project-atrium/warder/internal/authn"
	"github.com/project-atrium/warder/internal/request"
)

// warmupExtension marks synthetic keep-warm probes sent through Envoy.
// They get an immediate OK without touching the pipeline.
const warmupExtension = "warmup"

// deniedMessage is the only denial detail that leaves the process.
// Denial causes go to the observability probes, never to the caller.
const deniedMessage = "unauthenticated"

// AuthzServer implements Envoy's ext_authz Authorization service over the
// authentication pipeline
type AuthzServer struct {
	authv3.UnimplementedAuthorizationServer

	authorizer *authn.Authorizer
}

// NewAuthzServer creates a new ext_authz server
func NewAuthzServer(authorizer *authn.Authorizer) *AuthzServer {
	return &AuthzServer{authorizer: authorizer}
}

// Check implements the ext_authz check endpoint.
//
// An authorized check returns OK with the authentication context attached as
// dynamic metadata, where the routed-to backend reads it instead of
// re-verifying tokens. Every denial maps to the same Unauthenticated response.
func (s *AuthzServer) Check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	if req.GetAttributes().GetContextExtensions()[warmupExtension] == "true" {
		return okResponse(nil)
	}

	decision := s.authorizer.Check(ctx, buildCheckRequest(req))
	if !decision.Authorized {
		return denyResponse(), nil
	}

	return okResponse(decision.Context)
}

// buildCheckRequest converts the Envoy request into the pipeline's transport
// neutral form. The cookie header doubles as the credential list, one entry
// per cookie.
func buildCheckRequest(req *authv3.CheckRequest) *request.CheckRequest {
	httpReq := req.GetAttributes().GetRequest().GetHttp()
	if httpReq == nil {
		return &request.CheckRequest{}
	}

	headers := httpReq.GetHeaders()

	var credentials []string
	if cookie := headers["cookie"]; cookie != "" {
		for _, entry := range strings.Split(cookie, ";") {
			credentials = append(credentials, strings.TrimSpace(entry))
		}
	}

	additional := map[string]any{
		"host":   httpReq.GetHost(),
		"method": httpReq.GetMethod(),
		"path":   httpReq.GetPath(),
	}

	return &request.CheckRequest{
		Headers:     headers,
		Credentials: credentials,
		Additional:  additional,
	}
}

func okResponse(authContext map[string]any) (*authv3.CheckResponse, error) {
	resp := &authv3.CheckResponse{
		Status: &status.Status{
			Code: int32(codes.OK),
		},
		HttpResponse: &authv3.CheckResponse_OkResponse{
			OkResponse: &authv3.OkHttpResponse{},
		},
	}

	if authContext != nil {
		metadata, err := structpb.NewStruct(authContext)
		if err != nil {
			// Context values are plain JSON types; failure here is a bug,
			// and leaking a half-built context would be worse than denying.
			return denyResponse(), nil
		}
		resp.DynamicMetadata = metadata
	}

	return resp, nil
}

// denyResponse creates the uniform denial response
func denyResponse() *authv3.CheckResponse {
	return &authv3.CheckResponse{
		Status: &status.Status{
			Code:    int32(codes.Unauthenticated),
			Message: deniedMessage,
		},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Body: deniedMessage,
			},
		},
	}
}
