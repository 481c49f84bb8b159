package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/dmorgan81/zimagebot/internal/page"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var urlRegexp = regexp.MustCompile(`^https://.+\.amazonaws\.com/(?P<key>.+?)\.html(?:\?.*)?$`)

type objectContext struct {
	Url   string `json:"inputS3Url"`
	Route string `json:"outputRoute"`
	Token string `json:"outputToken"`
}

// HtmlRequest is the S3 Object Lambda event for a GET of an .html key.
type HtmlRequest struct {
	Id         string        `json:"xAmzRequestId"`
	GetContext objectContext `json:"getObjectContext"`
}

// ObjectStore is the part of the S3 client the page handler needs.
type ObjectStore interface {
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	WriteGetObjectResponse(context.Context, *s3.WriteGetObjectResponseInput, ...func(*s3.Options)) (*s3.WriteGetObjectResponseOutput, error)
}

// HtmlHandler renders the page of a generated image from the metadata stored
// with the image.
type HtmlHandler struct {
	store     ObjectStore
	bucket    string
	templator *page.Templator
}

func NewHtmlHandler(i *do.Injector) (*HtmlHandler, error) {
	return &HtmlHandler{
		store:     do.MustInvoke[*s3.Client](i),
		bucket:    do.MustInvokeNamed[string](i, "bucket"),
		templator: do.MustInvoke[*page.Templator](i),
	}, nil
}

// ImageKey extracts the image key that an object lambda URL refers to.
func ImageKey(url string) (string, error) {
	matches := urlRegexp.FindStringSubmatch(url)
	if matches == nil {
		return "", fmt.Errorf("unexpected object url %q", url)
	}
	return matches[urlRegexp.SubexpIndex("key")] + ".png", nil
}

// pageParams rebuilds the page of an image from its metadata. Images written
// before the date was recorded fall back to the key.
func pageParams(key string, metadata map[string]string) page.Params {
	date := lo.Ternary(metadata["date"] != "", metadata["date"], strings.TrimSuffix(key, ".png"))
	return page.Params{
		Date:   date,
		Image:  date + ".png",
		Prompt: metadata["prompt"],
		Seed:   metadata["seed"],
		Size:   metadata["size"],
	}
}

func (h *HtmlHandler) Handle(ctx context.Context, request HtmlRequest) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("HtmlHandler").With("request", request.Id)
	key, err := ImageKey(request.GetContext.Url)
	if err != nil {
		return err
	}
	log.Info("handling object lambda request", "key", key)

	out, err := h.store.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if nf := new(types.NotFound); errors.As(err, &nf) {
		log.Warn("no image for page", "key", key)
		_, err = h.store.WriteGetObjectResponse(ctx, &s3.WriteGetObjectResponseInput{
			RequestRoute: aws.String(request.GetContext.Route),
			RequestToken: aws.String(request.GetContext.Token),
			StatusCode:   http.StatusNotFound,
			ErrorCode:    aws.String("NoSuchKey"),
			ErrorMessage: aws.String("no image for " + key),
		})
		return err
	}
	if err != nil {
		return err
	}

	html, err := h.templator.Template(ctx, pageParams(key, out.Metadata))
	if err != nil {
		return err
	}

	_, err = h.store.WriteGetObjectResponse(ctx, &s3.WriteGetObjectResponseInput{
		RequestRoute: aws.String(request.GetContext.Route),
		RequestToken: aws.String(request.GetContext.Token),

		Body:          bytes.NewReader(html),
		ContentLength: int64(len(html)),
		ContentType:   aws.String("text/html"),
		ETag:          out.ETag,
		Expires:       out.Expires,
		LastModified:  out.LastModified,
		Metadata:      out.Metadata,
		StatusCode:    http.StatusOK,
	})
	return err
}
