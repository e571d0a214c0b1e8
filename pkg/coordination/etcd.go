/*
Copyright 2026 The Scale-to-Zero Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const (
	leaderElectionPrefix = "/scale-to-zero/leader"
	leaseTTLSeconds      = 15
)

// EtcdCoordinator is the multi-node coordinator spec.md documents as a
// stub: it establishes a session and contends for a concurrency.Election
// lock, but (per spec.md §9) full multi-node semantics - rebalancing
// ownership of in-flight scale decisions between instances - are
// undefined and not implemented here. This instance's node ID is a
// random UUID rather than anything derived from pod identity, since the
// ported source does not specify one either.
type EtcdCoordinator struct {
	nodeID   string
	client   *clientv3.Client
	session  *concurrency.Session
	election *concurrency.Election
}

// NewEtcdCoordinator dials endpoints and starts contending for
// leadership. It does not block waiting to win the election; callers
// poll IsLeader.
func NewEtcdCoordinator(endpoints []string) (*EtcdCoordinator, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing etcd at %v: %w", endpoints, err)
	}

	session, err := concurrency.NewSession(cli, concurrency.WithTTL(leaseTTLSeconds))
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("starting etcd session: %w", err)
	}

	nodeID := uuid.NewString()
	election := concurrency.NewElection(session, leaderElectionPrefix)
	// Campaign in the background; IsLeader reflects the outcome once it
	// resolves. A failed campaign just means this node never becomes
	// leader, which is safe for a stub coordinator.
	go func() {
		_ = election.Campaign(context.Background(), nodeID)
	}()

	return &EtcdCoordinator{
		nodeID:   nodeID,
		client:   cli,
		session:  session,
		election: election,
	}, nil
}

func (c *EtcdCoordinator) IsLeader(ctx context.Context) (bool, error) {
	resp, err := c.election.Leader(ctx)
	if err != nil {
		return false, nil //nolint:nilerr // no leader yet is not an error condition for callers
	}
	if len(resp.Kvs) == 0 {
		return false, nil
	}
	return string(resp.Kvs[0].Value) == c.nodeID, nil
}

func (c *EtcdCoordinator) Close() error {
	if c.session != nil {
		_ = c.session.Close()
	}
	return c.client.Close()
}
