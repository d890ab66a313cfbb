package oplog

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.ytsaurus.tech/library/go/core/log"
	"go.ytsaurus.tech/library/go/core/log/nop"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

const (
	defaultHost       = "localhost"
	defaultPort       = 27017
	defaultAuthSource = "admin"
)

// ConnectionOptions describes how to reach the replica set member whose oplog
// is to be tailed. The zero value connects to localhost:27017 without
// authentication.
type ConnectionOptions struct {
	Hosts      []string
	Port       int // applied to hosts given without an explicit port
	ReplicaSet string
	AuthSource string
	User       string
	Password   string

	// Direct makes a direct connection to the given host instead of
	// discovering the topology, useful for tailing one concrete secondary.
	Direct bool

	// SecondaryPreferred routes reads to a secondary when one is available so
	// that tailing does not load the primary.
	SecondaryPreferred bool
}

func (o ConnectionOptions) hosts() []string {
	port := o.Port
	if port == 0 {
		port = defaultPort
	}
	if len(o.Hosts) == 0 {
		return []string{fmt.Sprintf("%s:%d", defaultHost, port)}
	}
	hosts := make([]string, 0, len(o.Hosts))
	for _, host := range o.Hosts {
		if strings.Contains(host, ":") {
			hosts = append(hosts, host)
		} else {
			hosts = append(hosts, fmt.Sprintf("%s:%d", host, port))
		}
	}
	return hosts
}

func (o ConnectionOptions) clientOptions() *options.ClientOptions {
	clientOptions := options.Client().SetHosts(o.hosts())
	if o.ReplicaSet != "" {
		clientOptions.SetReplicaSet(o.ReplicaSet)
	}
	if o.User != "" {
		authSource := o.AuthSource
		if authSource == "" {
			authSource = defaultAuthSource
		}
		clientOptions.SetAuth(options.Credential{
			AuthSource: authSource,
			Username:   o.User,
			Password:   o.Password,
		})
	}
	if o.Direct {
		clientOptions.SetDirect(true)
	}
	if o.SecondaryPreferred {
		clientOptions.SetReadPreference(readpref.SecondaryPreferred())
	}
	return clientOptions
}

// Connect dials the deployment and verifies it is reachable. The returned
// client is owned by the caller; closing it invalidates any tailing session
// built on top of it.
func Connect(ctx context.Context, opts ConnectionOptions, lgr log.Logger) (*mongo.Client, error) {
	if lgr == nil {
		lgr = &nop.Logger{}
	}

	client, err := mongo.Connect(ctx, opts.clientOptions())
	if err != nil {
		return nil, ErrConnection.Wrap(xerrors.Errorf("cannot connect to %v: %w", opts.hosts(), err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, ErrConnection.Wrap(xerrors.Errorf("cannot ping %v: %w", opts.hosts(), err))
	}

	lgr.Info("connected to mongodb", log.Strings("hosts", opts.hosts()))
	return client, nil
}
