package stream

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisBackplaneRelaysBetweenInstances(t *testing.T) {
	server := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: server.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localReg, remoteReg := NewRegistry(), NewRegistry()
	local := NewRedisBackplane(newClient(), localReg)
	remote := NewRedisBackplane(newClient(), remoteReg)

	ready := make(chan struct{})
	go func() { _ = remote.Run(ctx, ready) }()
	<-ready
	localReady := make(chan struct{})
	go func() { _ = local.Run(ctx, localReady) }()
	<-localReady

	localSub := localReg.Subscribe(ctx, JurisdictionGroup("Vashi"))
	remoteSub := remoteReg.Subscribe(ctx, JurisdictionGroup("Vashi"))

	ev, _ := NewEvent(EventNewComplaint, map[string]string{"title": "Theft"})
	n, err := local.Publish(ctx, JurisdictionGroup("Vashi"), ev)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if n != 1 {
		t.Fatalf("local deliveries=%d", n)
	}
	if got := recv(t, localSub); got.Name != EventNewComplaint {
		t.Fatalf("local got %+v", got)
	}
	if got := recv(t, remoteSub); got.Name != EventNewComplaint || string(got.Data) != `{"title":"Theft"}` {
		t.Fatalf("remote got %+v", got)
	}
	select {
	case ev := <-localSub:
		t.Fatalf("origin instance received its own relay: %+v", ev)
	default:
	}
}
