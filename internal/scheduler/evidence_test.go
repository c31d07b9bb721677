package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/internal/model"
)

const sampleNmapStdout = `Starting Nmap 7.94 ( https://nmap.org )
Nmap scan report for example.com (93.184.216.34)
PORT    STATE  SERVICE
22/tcp  open   ssh
80/tcp  open   http
443/tcp open   https
8080/tcp closed http-proxy

Nmap done: 1 IP address (1 host up) scanned in 2.05 seconds
`

func TestExtractOpenPorts(t *testing.T) {
	hosts := extractOpenPorts("example.com", sampleNmapStdout)
	require.Len(t, hosts, 1)
	assert.Equal(t, "example.com", hosts[0].Address)

	services := hosts[0].Services
	require.Len(t, services, 3)
	assert.Equal(t, model.Service{Port: 22, Protocol: "tcp", Name: "ssh"}, services[0])
	assert.Equal(t, model.Service{Port: 80, Protocol: "tcp", Name: "http"}, services[1])
	assert.Equal(t, model.Service{Port: 443, Protocol: "tcp", Name: "https"}, services[2])
}

func TestExtractOpenPortsIgnoresNoise(t *testing.T) {
	assert.Nil(t, extractOpenPorts("example.com", "Note: Host seems down.\n"))
	assert.Nil(t, extractOpenPorts("example.com", ""))
}

func TestWebDetectionRuleAppendsDependentTasks(t *testing.T) {
	job := model.NewJob("example.com")
	nmap := model.NewTask("nmap", map[string]any{"target": "example.com"})
	job.AddTask(nmap)
	require.NoError(t, nmap.MarkRunning())
	require.NoError(t, nmap.Complete(&model.Result{Success: true, Stdout: "80/tcp open http"}))

	followUps := webDetectionRule(job, nmap)
	require.Len(t, followUps, 2)
	for _, task := range followUps {
		require.Len(t, task.Dependencies, 1)
		assert.Equal(t, nmap.ID, task.Dependencies[0])
	}
}

func TestWebDetectionRuleSkipsNonWebOutput(t *testing.T) {
	job := model.NewJob("example.com")
	nmap := model.NewTask("nmap", map[string]any{"target": "example.com"})
	job.AddTask(nmap)
	require.NoError(t, nmap.MarkRunning())
	require.NoError(t, nmap.Complete(&model.Result{Success: true, Stdout: "22/tcp open ssh"}))

	assert.Empty(t, webDetectionRule(job, nmap))
}
