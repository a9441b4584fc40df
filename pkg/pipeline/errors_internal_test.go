package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorChans(t *testing.T) {
	ecs := errorChans{}
	ec1 := &errorChan{}
	ec2 := &errorChan{}
	doneChan := make(chan struct{}, 2)
	go func() {
		ecs.add(ec1)
		doneChan <- struct{}{}
	}()
	go func() {
		ecs.add(ec2)
		doneChan <- struct{}{}
	}()
	<-doneChan
	<-doneChan
	assert.ElementsMatch(t, []*errorChan{ec1, ec2}, ecs.list)
}

func TestNewErrorChan(t *testing.T) {
	ec1 := newErrorChan("error chan", nil)
	expectedEc1 := &errorChan{
		name: "error chan",
	}
	assert.Equal(t, expectedEc1, ec1)
	c2 := make(chan error)
	ec2 := newErrorChan("error chan 2", c2)
	expectedEc2 := &errorChan{
		name: "error chan 2",
		c:    c2,
	}
	assert.Equal(t, expectedEc2, ec2)
}

func TestMergeErrorsAllNil(t *testing.T) {
	ec1 := newErrorChan("error chan", nil)
	ec2 := newErrorChan("error chan 2", nil)

	outErrorChan := mergeErrors(ec1, ec2)
	gotErr, open := <-outErrorChan
	assert.False(t, open)
	assert.Nil(t, gotErr)
}

func TestMergeErrorsDecoratesWithName(t *testing.T) {
	chan1 := make(chan error, 1)
	ec1 := newErrorChan("first step", chan1)
	chan1 <- errors.New("boom")
	close(chan1)

	outErrorChan := mergeErrors(ec1)
	gotErr, open := <-outErrorChan
	assert.True(t, open)
	assert.EqualError(t, gotErr, "first step: boom")

	_, open = <-outErrorChan
	assert.False(t, open)
}

func TestWaitForPipelineReturnsFirstError(t *testing.T) {
	chan1 := make(chan error, 1)
	ec1 := newErrorChan("first step", chan1)
	chan1 <- errors.New("boom")
	close(chan1)

	chan2 := make(chan error)
	close(chan2)
	ec2 := newErrorChan("second step", chan2)

	err := waitForPipeline(nil, ec1, ec2)
	assert.Error(t, err)
}
