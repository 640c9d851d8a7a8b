package authn

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/project-atrium/warder/internal/token"
)

// Identity-token claims projected into the authentication context
const (
	claimUsername   = "cognito:username"
	claimEmail      = "email"
	claimGivenName  = "given_name"
	claimFamilyName = "family_name"

	claimRole           = "custom:role"
	claimBuildQuery     = "custom:build_query"
	claimCanShare       = "custom:can_share"
	claimIRBMemberships = "custom:irb_memberships"
	claimPHIAccessLevel = "custom:phi_access_level"
	claimValidateData   = "custom:validate_data"
	claimDownloadData   = "custom:download_data"
	claimVersionView    = "custom:version_view"
)

// Recognized PHI access levels. The claim value is projected as-is; these are
// the levels issuers are expected to mint.
const (
	PHIAccessNone             = "NONE"
	PHIAccessMetricsOnly      = "METRICS_ONLY"
	PHIAccessPatientLevelCond = "PATIENT_LEVEL_CONDITIONAL"
	PHIAccessPatientLevelFull = "PATIENT_LEVEL_FULL"
)

// UserClaims is the permission block projected from the identity token's
// custom claims. Absent claims fall back to the most restrictive value.
type UserClaims struct {
	BuildQuery     bool
	CanShare       bool
	IRBMemberships []string
	PHIAccessLevel string
	ValidateData   bool
	DownloadData   bool
	VersionView    bool
}

// Context is the authentication context attached to an authorized request.
// Downstream services consume it instead of re-verifying tokens.
type Context struct {
	AccountID      uuid.UUID
	Cookie         string
	Email          string
	FirstName      string
	LastName       string
	OrganizationID uuid.UUID
	Role           string
	Username       string
	UserClaims     UserClaims
}

// Map renders the context in its downstream wire shape
func (c *Context) Map() map[string]any {
	memberships := make([]any, 0, len(c.UserClaims.IRBMemberships))
	for _, m := range c.UserClaims.IRBMemberships {
		memberships = append(memberships, m)
	}

	return map[string]any{
		"accountUuid":      c.AccountID.String(),
		"cookie":           c.Cookie,
		"email":            c.Email,
		"firstName":        c.FirstName,
		"lastName":         c.LastName,
		"organizationUuid": c.OrganizationID.String(),
		"role":             c.Role,
		"username":         c.Username,
		"user_claims": map[string]any{
			"buildQuery":     c.UserClaims.BuildQuery,
			"canShare":       c.UserClaims.CanShare,
			"irbMemberships": memberships,
			"phiAccessLevel": c.UserClaims.PHIAccessLevel,
			"validateData":   c.UserClaims.ValidateData,
			"downloadData":   c.UserClaims.DownloadData,
			"versionView":    c.UserClaims.VersionView,
		},
	}
}

// userClaimsFromToken projects the permission claims out of a verified
// identity token
func userClaimsFromToken(t *token.VerifiedToken) UserClaims {
	level := t.GetString(claimPHIAccessLevel)
	if level == "" {
		level = PHIAccessNone
	}

	return UserClaims{
		BuildQuery:     boolClaim(t.Claims[claimBuildQuery]),
		CanShare:       boolClaim(t.Claims[claimCanShare]),
		IRBMemberships: membershipsClaim(t.GetString(claimIRBMemberships)),
		PHIAccessLevel: level,
		ValidateData:   boolClaim(t.Claims[claimValidateData]),
		DownloadData:   boolClaim(t.Claims[claimDownloadData]),
		VersionView:    boolClaim(t.Claims[claimVersionView]),
	}
}

// boolClaim coerces a claim that issuers mint either as a JSON bool or as a
// stringified bool. Anything unrecognized is false.
func boolClaim(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		parsed, err := strconv.ParseBool(value)
		return err == nil && parsed
	default:
		return false
	}
}

// membershipsClaim splits the comma-joined membership list. An empty claim is
// an empty list, not [""].
func membershipsClaim(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSpace(raw), ",")
}
