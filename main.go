package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/zimagebot/internal/handler"
	"github.com/dmorgan81/zimagebot/internal/inject"
	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/samber/do"
)

func main() {
	cfg, err := inject.LoadConfig(os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := log.NewContext(context.Background(), log.New(os.Stderr, log.ParseLevel(cfg.LogLevel)))
	injector := inject.Setup(ctx, cfg)

	var h any
	switch os.Getenv("HANDLER") {
	case "html":
		h = do.MustInvoke[*handler.HtmlHandler](injector).Handle
	default:
		h = do.MustInvoke[*handler.Handler](injector).Handle
	}

	lambda.StartWithOptions(h, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
		_ = injector.Shutdown()
	}))
}
