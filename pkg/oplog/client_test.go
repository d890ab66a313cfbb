package oplog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func TestConnectionOptionsDefaults(t *testing.T) {
	opts := ConnectionOptions{}
	require.Equal(t, []string{"localhost:27017"}, opts.hosts())

	clientOptions := opts.clientOptions()
	require.Nil(t, clientOptions.Auth)
	require.Nil(t, clientOptions.ReplicaSet)
}

func TestConnectionOptionsAppliesPort(t *testing.T) {
	opts := ConnectionOptions{
		Hosts: []string{"mongo-1", "mongo-2:27018"},
		Port:  27019,
	}
	require.Equal(t, []string{"mongo-1:27019", "mongo-2:27018"}, opts.hosts())
}

func TestConnectionOptionsAuthDefaultsToAdmin(t *testing.T) {
	clientOptions := ConnectionOptions{User: "tailer", Password: "secret"}.clientOptions()
	require.NotNil(t, clientOptions.Auth)
	require.Equal(t, "admin", clientOptions.Auth.AuthSource)
	require.Equal(t, "tailer", clientOptions.Auth.Username)
}

func TestConnectionOptionsTopology(t *testing.T) {
	clientOptions := ConnectionOptions{
		ReplicaSet:         "rs0",
		Direct:             true,
		SecondaryPreferred: true,
	}.clientOptions()

	require.Equal(t, "rs0", *clientOptions.ReplicaSet)
	require.True(t, *clientOptions.Direct)
	require.Equal(t, readpref.SecondaryPreferredMode, clientOptions.ReadPreference.Mode())
}
