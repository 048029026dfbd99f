package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/datahub/internal/printer"
	"github.com/dyluth/datahub/pkg/client"
	"github.com/dyluth/datahub/pkg/events"
)

const (
	defaultHubAddr  = "http://localhost:8000"
	defaultInstance = "default"
	lookupTimeout   = 2 * time.Second
)

// resolveHubAddr picks the hub URL: --hub, then $DATAHUB_ADDR, then the
// presence record a serving hub keeps in Redis ($REDIS_URL, $DATAHUB_INSTANCE),
// then the default.
func resolveHubAddr(ctx context.Context, flagAddr string, getenv func(string) string) string {
	if flagAddr != "" {
		return flagAddr
	}
	if addr := getenv("DATAHUB_ADDR"); addr != "" {
		return addr
	}

	if redisURL := getenv("REDIS_URL"); redisURL != "" {
		instance := getenv("DATAHUB_INSTANCE")
		if instance == "" {
			instance = defaultInstance
		}
		if addr, err := lookupHub(ctx, redisURL, instance); err == nil {
			return addr
		}
	}

	return defaultHubAddr
}

func lookupHub(ctx context.Context, redisURL, instance string) (string, error) {
	ec, err := events.NewClientFromURL(redisURL, instance)
	if err != nil {
		return "", err
	}
	defer ec.Close()

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	return ec.LookupHub(ctx)
}

// newHubClient builds a client for the resolved hub and returns its address.
func newHubClient(ctx context.Context) (*client.Client, string, error) {
	addr := resolveHubAddr(ctx, hubAddrFlag, os.Getenv)

	id := clientIDFlag
	if id == "" {
		id = os.Getenv("DATAHUB_CLIENT_ID")
	}

	c, err := client.New(addr, client.WithClientID(id))
	if err != nil {
		return nil, addr, printer.Error(
			"invalid hub address",
			err.Error(),
			[]string{"Use a full URL:\n  datahub --hub http://localhost:8000 ..."},
		)
	}
	return c, addr, nil
}

// hubError turns a client error into a formatted CLI error.
func hubError(addr string, err error) error {
	if errors.Is(err, client.ErrConnection) {
		return printer.ErrorWithContext(
			"hub unreachable",
			fmt.Sprintf("Could not complete the request: %v", err),
			map[string]string{"Hub": addr},
			[]string{
				"Start a hub:\n  datahub serve",
				"Point at a running hub:\n  datahub --hub http://HOST:PORT ...",
			},
		)
	}
	return printer.ErrorWithContext(
		"request rejected",
		err.Error(),
		map[string]string{"Hub": addr},
		nil,
	)
}
