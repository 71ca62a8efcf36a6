// Package httpsig signs outbound HTTP requests with RFC 9421 message
// signatures so a receiving service can authenticate the caller
// without re-reading the payload: the signature covers the request
// method, path, authority and the body's content digest.
package httpsig

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/dunglas/httpsfv"

	"github.com/permagate/aogo/core"
	"github.com/permagate/aogo/util"
	"github.com/permagate/aogo/x/signer"
)

const label = "http-sig"

var algNames = map[core.SignatureType]string{
	core.SigTypeArweave:  "rsa-pss-sha256",
	core.SigTypeEthereum: "secp256k1-keccak",
}

// SignRequest canonicalizes the request's covered components, signs
// the base string and attaches Content-Digest, Signature-Input and
// Signature headers.
func SignRequest(req *http.Request, body []byte, s signer.Signer, created int64) error {
	alg, ok := algNames[s.Type()]
	if !ok {
		return core.NewSigningError("signer has no http signature algorithm", nil)
	}

	components := []string{"@method", "@path", "@authority"}
	if body != nil {
		digest := sha256.Sum256(body)
		dict := httpsfv.NewDictionary()
		dict.Add("sha-256", httpsfv.NewItem(digest[:]))
		value, err := httpsfv.Marshal(dict)
		if err != nil {
			return core.NewSigningError("failed to serialize content digest", err)
		}
		req.Header.Set("Content-Digest", value)
		components = append(components, "content-digest")
	}

	params := httpsfv.NewParams()
	params.Add("alg", alg)
	params.Add("keyid", util.B64Encode(s.Owner()))
	params.Add("created", created)

	inner := httpsfv.InnerList{Params: params}
	for _, component := range components {
		inner.Items = append(inner.Items, httpsfv.NewItem(component))
	}

	base, err := signatureBase(req, components, inner)
	if err != nil {
		return err
	}

	signature, err := s.Sign([]byte(base))
	if err != nil {
		return err
	}

	inputDict := httpsfv.NewDictionary()
	inputDict.Add(label, inner)
	inputValue, err := httpsfv.Marshal(inputDict)
	if err != nil {
		return core.NewSigningError("failed to serialize signature input", err)
	}

	sigDict := httpsfv.NewDictionary()
	sigDict.Add(label, httpsfv.NewItem(signature))
	sigValue, err := httpsfv.Marshal(sigDict)
	if err != nil {
		return core.NewSigningError("failed to serialize signature", err)
	}

	req.Header.Set("Signature-Input", inputValue)
	req.Header.Set("Signature", sigValue)
	return nil
}

// VerifyRequest checks the signature headers produced by SignRequest
// against the embedded key id.
func VerifyRequest(req *http.Request, body []byte) error {
	inputDict, err := httpsfv.UnmarshalDictionary(req.Header.Values("Signature-Input"))
	if err != nil {
		return core.NewSigningError("missing or malformed Signature-Input", err)
	}
	member, ok := inputDict.Get(label)
	if !ok {
		return core.NewSigningError("signature label not present", nil)
	}
	inner, ok := member.(httpsfv.InnerList)
	if !ok {
		return core.NewSigningError("Signature-Input member is not an inner list", nil)
	}

	var components []string
	coversDigest := false
	for _, item := range inner.Items {
		name, ok := item.Value.(string)
		if !ok {
			return core.NewSigningError("covered component is not a string", nil)
		}
		if name == "content-digest" {
			coversDigest = true
		}
		components = append(components, name)
	}

	if body != nil {
		if !coversDigest {
			return core.NewSigningError("signature does not cover the content digest", nil)
		}
		digest := sha256.Sum256(body)
		dict := httpsfv.NewDictionary()
		dict.Add("sha-256", httpsfv.NewItem(digest[:]))
		want, _ := httpsfv.Marshal(dict)
		if req.Header.Get("Content-Digest") != want {
			return core.NewSigningError("content digest mismatch", nil)
		}
	}

	alg, keyid, err := signatureParams(inner.Params)
	if err != nil {
		return err
	}

	var sigType core.SignatureType
	for t, name := range algNames {
		if name == alg {
			sigType = t
		}
	}
	if sigType == 0 {
		return core.NewSigningError("unknown signature algorithm "+alg, nil)
	}

	owner, err := util.B64Decode(keyid)
	if err != nil {
		return core.NewSigningError("keyid is not base64url", err)
	}

	sigDict, err := httpsfv.UnmarshalDictionary(req.Header.Values("Signature"))
	if err != nil {
		return core.NewSigningError("missing or malformed Signature", err)
	}
	sigMember, ok := sigDict.Get(label)
	if !ok {
		return core.NewSigningError("signature label not present", nil)
	}
	sigItem, ok := sigMember.(httpsfv.Item)
	if !ok {
		return core.NewSigningError("Signature member is not an item", nil)
	}
	signature, ok := sigItem.Value.([]byte)
	if !ok {
		return core.NewSigningError("signature is not a byte sequence", nil)
	}

	base, err := signatureBase(req, components, inner)
	if err != nil {
		return err
	}

	return signer.Verify(sigType, owner, []byte(base), signature)
}

func signatureParams(params *httpsfv.Params) (alg, keyid string, err error) {
	rawAlg, ok := params.Get("alg")
	if !ok {
		return "", "", core.NewSigningError("signature params missing alg", nil)
	}
	alg, ok = rawAlg.(string)
	if !ok {
		return "", "", core.NewSigningError("alg is not a string", nil)
	}

	rawKeyid, ok := params.Get("keyid")
	if !ok {
		return "", "", core.NewSigningError("signature params missing keyid", nil)
	}
	keyid, ok = rawKeyid.(string)
	if !ok {
		return "", "", core.NewSigningError("keyid is not a string", nil)
	}

	return alg, keyid, nil
}

// signatureBase builds the canonical string the signature covers: one
// line per component plus the @signature-params line.
func signatureBase(req *http.Request, components []string, inner httpsfv.InnerList) (string, error) {
	var b strings.Builder
	for _, component := range components {
		value, err := componentValue(req, component)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%q: %s\n", component, value)
	}

	paramsValue, err := httpsfv.Marshal(httpsfv.List{inner})
	if err != nil {
		return "", core.NewSigningError("failed to serialize signature params", err)
	}
	fmt.Fprintf(&b, "%q: %s", "@signature-params", paramsValue)

	return b.String(), nil
}

func componentValue(req *http.Request, component string) (string, error) {
	switch component {
	case "@method":
		return req.Method, nil
	case "@path":
		path := req.URL.EscapedPath()
		if path == "" {
			path = "/"
		}
		return path, nil
	case "@authority":
		authority := req.Host
		if authority == "" {
			authority = req.URL.Host
		}
		if authority == "" {
			return "", core.NewSigningError("request has no authority", nil)
		}
		return authority, nil
	case "content-digest":
		value := req.Header.Get("Content-Digest")
		if value == "" {
			return "", core.NewSigningError("request has no content digest", nil)
		}
		return value, nil
	default:
		return "", core.NewSigningError("unsupported covered component "+component, nil)
	}
}

// ContentDigest returns the RFC 9530 digest header value for a body,
// for callers that need it without a full signature.
func ContentDigest(body []byte) string {
	digest := sha256.Sum256(body)
	return "sha-256=:" + base64.StdEncoding.EncodeToString(digest[:]) + ":"
}
