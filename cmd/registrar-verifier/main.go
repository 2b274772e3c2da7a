// Copyright 2024 W3F Registrar Verifier Authors.
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"flag"
	"net"
	"os"

	goredis "github.com/go-redis/redis/v8"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/jmhodges/clock"
	"google.golang.org/grpc"

	"github.com/w3f/registrar-verifier/cmd"
	"github.com/w3f/registrar-verifier/manager"
	"github.com/w3f/registrar-verifier/rpcapi"
	"github.com/w3f/registrar-verifier/store"
)

func main() {
	configFile := flag.String("config", "", "File path to the configuration file for this service")
	flag.Parse()
	if *configFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	var c cmd.Config
	err := cmd.ReadConfigFile(*configFile, &c)
	cmd.FailOnError(err, "Reading JSON config file into config structure")

	stats, logger := cmd.StatsAndLogging(c.Syslog)
	defer logger.Sync()
	logger.Infof("starting %s", cmd.VersionString())

	if c.Verifier.DebugAddr != "" {
		go cmd.DebugServer(c.Verifier.DebugAddr)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     c.Verifier.Redis.Addr,
		Password: string(c.Verifier.Redis.Password),
		DB:       c.Verifier.Redis.DB,
	})
	persistentStore := store.New(redisClient)

	broadcaster := rpcapi.NewBroadcaster()

	limit := c.Verifier.DisplayNameSimilarityLimit
	if limit == 0 {
		limit = 0.85
	}
	mgr := manager.New(limit, broadcaster, clock.New(), logger, stats.NewScope("Manager"))

	rehydrateFromStore(mgr, persistentStore)

	go cmd.ProfileCmd(stats)

	grpcServer := grpc.NewServer(
		grpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		grpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
	)
	rpcapi.Register(grpcServer, rpcapi.NewServer(broadcaster))
	grpc_prometheus.Register(grpcServer)

	lis, err := net.Listen("tcp", c.Verifier.RPCAddr)
	cmd.FailOnError(err, "unable to bind RPC address")

	go cmd.CatchSignals(logger, func() {
		grpcServer.GracefulStop()
	})

	logger.Infof("notification service listening on %s", c.Verifier.RPCAddr)
	cmd.FailOnError(grpcServer.Serve(lis), "gRPC server exited")
}

// rehydrateFromStore reloads every pending identity persisted by a prior
// process into a freshly constructed manager, the same restart-recovery
// role ra.NewRegistrationAuthorityImpl's warm-up pass plays against the
// SA before an RA starts serving RPCs.
func rehydrateFromStore(mgr *manager.IdentityManager, s *store.RedisStore) {
	identities, err := s.ListPendingIdentities(context.Background())
	if err != nil {
		return
	}
	for _, identity := range identities {
		mgr.InsertIdentity(identity)
	}
}
