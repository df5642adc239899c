package manifest

import "fmt"

// headersFile is the _headers block understood by Cloudflare Pages and
// Netlify. It mirrors what the validator later checks for: correct
// wasm content type, cross-origin isolation and immutable caching for
// hashed assets.
const headersFile = `/*
  X-Content-Type-Options: nosniff
  Access-Control-Allow-Origin: *
/*.wasm
  Content-Type: application/wasm
  Cross-Origin-Embedder-Policy: require-corp
  Cross-Origin-Opener-Policy: same-origin
  Cache-Control: public, max-age=31536000, immutable
/*.js
  Cache-Control: public, max-age=31536000, immutable
/manifest.json
  Cache-Control: no-cache
/plugins/manifest.json
  Cache-Control: no-cache
`

const vercelFile = `{
  "headers": [
    {
      "source": "(.*)\\.wasm",
      "headers": [
        { "key": "Content-Type", "value": "application/wasm" },
        { "key": "Cross-Origin-Embedder-Policy", "value": "require-corp" },
        { "key": "Cross-Origin-Opener-Policy", "value": "same-origin" }
      ]
    },
    {
      "source": "(.*)",
      "headers": [
        { "key": "X-Content-Type-Options", "value": "nosniff" },
        { "key": "Access-Control-Allow-Origin", "value": "*" }
      ]
    }
  ]
}
`

// SideFiles returns the provider-specific companion files written next
// to the bundle. GitHub Pages needs .nojekyll or anything starting
// with an underscore silently vanishes from the published site; the
// header-capable hosts get their header manifest instead.
func SideFiles(target, domain string) map[string][]byte {
	switch target {
	case "github-pages":
		files := map[string][]byte{".nojekyll": {}}
		if domain != "" {
			files["CNAME"] = []byte(domain + "\n")
		}
		return files
	case "cloudflare-pages", "netlify":
		return map[string][]byte{"_headers": []byte(headersFile)}
	case "vercel":
		return map[string][]byte{"vercel.json": []byte(vercelFile)}
	default:
		return map[string][]byte{}
	}
}

// RobotsFile blocks indexing of non-production environments so staging
// CDN contents never leak into search results.
func RobotsFile(environment string) []byte {
	if environment == "production" {
		return nil
	}
	return []byte(fmt.Sprintf("# %s environment\nUser-agent: *\nDisallow: /\n", environment))
}
