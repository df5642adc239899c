package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/srnarasim/dataprism-tooling/model"
)

// securityHeaders is what a hardened static host should send. Most
// static CDNs send few of these, so individual misses are warnings.
var securityHeaders = []struct {
	header    string
	want      string // substring match when non-empty
	httpsOnly bool
	advice    string
}{
	{"X-Content-Type-Options", "nosniff", false, "add X-Content-Type-Options: nosniff to stop MIME sniffing"},
	{"Strict-Transport-Security", "", true, "add Strict-Transport-Security to pin HTTPS"},
	{"Content-Security-Policy", "", false, "add a Content-Security-Policy to limit script sources"},
	{"X-Frame-Options", "", false, "add X-Frame-Options or frame-ancestors to stop clickjacking"},
	{"Referrer-Policy", "", false, "add a Referrer-Policy to avoid leaking URLs"},
	{"Permissions-Policy", "", false, "add a Permissions-Policy to disable unused browser features"},
}

func (d *deployment) addSecurity(checks ...model.SecurityCheck) {
	d.mu.Lock()
	d.security = append(d.security, checks...)
	d.mu.Unlock()
}

func (d *deployment) checkSecurityHeaders(ctx context.Context) model.ValidationCheck {
	resp, _, _, err := d.get(ctx, "/", nil)
	if err != nil {
		return failed(fmt.Sprintf("deployment unreachable: %v", err))
	}

	https := strings.HasPrefix(d.base, "https://")
	var missing []string
	for _, sh := range securityHeaders {
		if sh.httpsOnly && !https {
			continue
		}
		got := resp.Header.Get(sh.header)
		ok := got != "" && (sh.want == "" || strings.Contains(strings.ToLower(got), sh.want))
		name := strings.ToLower(sh.header)
		if ok {
			d.addSecurity(model.SecurityCheck{
				Name:        name,
				Status:      model.CheckPassed,
				Description: sh.header + " is set",
			})
			continue
		}
		missing = append(missing, sh.header)
		d.addSecurity(model.SecurityCheck{
			Name:           name,
			Status:         model.CheckWarning,
			Description:    sh.header + " is missing",
			Recommendation: sh.advice,
		})
	}

	if len(missing) > 0 {
		return withDetails(warning(fmt.Sprintf("%d security headers missing", len(missing))),
			map[string]any{"missing": missing})
	}
	return passed("security headers present")
}

// sensitivePaths are files that must never be publicly served. Finding
// one is a hard failure: it usually means the scan root was wrong and
// secrets went out with the bundle.
var sensitivePaths = []string{
	".env",
	".env.local",
	".git/config",
	".github/workflows",
	".npmrc",
	"secrets.json",
	"config.json.bak",
	"id_rsa",
}

func (d *deployment) checkSensitiveFiles(ctx context.Context) model.ValidationCheck {
	var exposed []string
	var unreachable bool
	for _, path := range sensitivePaths {
		resp, _, _, err := d.get(ctx, path, nil)
		if err != nil {
			unreachable = true
			continue
		}
		if resp.StatusCode == http.StatusOK {
			exposed = append(exposed, path)
		}
	}

	if len(exposed) > 0 {
		d.addSecurity(model.SecurityCheck{
			Name:           "sensitive-files",
			Status:         model.CheckFailed,
			Description:    "sensitive files publicly served: " + strings.Join(exposed, ", "),
			Recommendation: "remove them from the deployment and rotate any leaked credentials",
		})
		return withDetails(failed(fmt.Sprintf("%d sensitive files exposed", len(exposed))),
			map[string]any{"exposed": exposed})
	}
	if unreachable {
		return warning("could not probe all sensitive paths")
	}
	d.addSecurity(model.SecurityCheck{
		Name:        "sensitive-files",
		Status:      model.CheckPassed,
		Description: "no sensitive files exposed",
	})
	return passed("no sensitive files exposed")
}
