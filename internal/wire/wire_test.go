package wire

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBlobList_Hierarchical(t *testing.T) {
	// Shape as returned by a delimiter listing: prefixes and blobs under
	// the same <Blobs> element, NextMarker at the end.
	const payload = `<?xml version="1.0" encoding="utf-8"?>
<EnumerationResults ContainerName="photos">
  <Prefix></Prefix>
  <Delimiter>/</Delimiter>
  <Blobs>
    <Blob>
      <Name>bar</Name>
      <Properties>
        <Last-Modified>Fri, 14 Mar 2025 09:26:53 GMT</Last-Modified>
        <Etag>"0x1"</Etag>
        <Content-Length>42</Content-Length>
        <Content-Type>text/plain</Content-Type>
      </Properties>
    </Blob>
    <BlobPrefix>
      <Name>foo/</Name>
    </BlobPrefix>
  </Blobs>
  <NextMarker>marker-2</NextMarker>
</EnumerationResults>`

	got, err := DecodeBlobList(strings.NewReader(payload))
	require.NoError(t, err)

	require.Len(t, got.Blobs, 1)
	assert.Equal(t, "bar", got.Blobs[0].Name)
	assert.Equal(t, `"0x1"`, got.Blobs[0].Properties.ETag)
	assert.Equal(t, int64(42), got.Blobs[0].Properties.ContentLength)
	assert.Equal(t,
		time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		got.Blobs[0].Properties.LastModified.Time)

	require.Len(t, got.Prefixes, 1)
	assert.Equal(t, "foo/", got.Prefixes[0].Name)
	assert.Equal(t, "marker-2", got.NextMarker)
}

func TestDecodeBlobList_EmptyNextMarkerMeansEnd(t *testing.T) {
	const payload = `<EnumerationResults><Blobs></Blobs><NextMarker/></EnumerationResults>`

	got, err := DecodeBlobList(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Empty(t, got.Blobs)
	assert.Empty(t, got.NextMarker)
}

func TestDecodeContainerList(t *testing.T) {
	const payload = `<EnumerationResults>
  <Containers>
    <Container><Name>logs</Name><Properties><Etag>"c1"</Etag></Properties></Container>
    <Container><Name>photos</Name><Properties><Etag>"c2"</Etag></Properties></Container>
  </Containers>
  <NextMarker>nm</NextMarker>
</EnumerationResults>`

	got, err := DecodeContainerList(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, got.Containers, 2)
	assert.Equal(t, "logs", got.Containers[0].Name)
	assert.Equal(t, "nm", got.NextMarker)
}

func TestDecodeMessageList_Receive(t *testing.T) {
	const payload = `<QueueMessagesList>
  <QueueMessage>
    <MessageId>msg-1</MessageId>
    <InsertionTime>Fri, 14 Mar 2025 09:00:00 GMT</InsertionTime>
    <ExpirationTime>Fri, 21 Mar 2025 09:00:00 GMT</ExpirationTime>
    <PopReceipt>r1</PopReceipt>
    <TimeNextVisible>Fri, 14 Mar 2025 09:00:30 GMT</TimeNextVisible>
    <DequeueCount>1</DequeueCount>
    <MessageText>hello</MessageText>
  </QueueMessage>
</QueueMessagesList>`

	got, err := DecodeMessageList(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)

	m := got.Messages[0]
	assert.Equal(t, "msg-1", m.MessageID)
	assert.Equal(t, "r1", m.PopReceipt)
	assert.Equal(t, "hello", m.MessageText)
	assert.Equal(t, int64(1), m.DequeueCount)
	assert.Equal(t, 30*time.Second, m.TimeNextVisible.Sub(m.InsertionTime.Time))
	assert.Equal(t, 7*24*time.Hour, m.ExpirationTime.Sub(m.InsertionTime.Time), "default TTL")
}

func TestEncodeQueueMessage(t *testing.T) {
	b, err := EncodeQueueMessage("hello & <goodbye>")
	require.NoError(t, err)
	assert.Equal(t,
		"<QueueMessage><MessageText>hello &amp; &lt;goodbye&gt;</MessageText></QueueMessage>",
		string(b))

	text, err := DecodeQueueMessageBody(strings.NewReader(string(b)))
	require.NoError(t, err)
	assert.Equal(t, "hello & <goodbye>", text)
}

func TestDecodeBlobList_Malformed(t *testing.T) {
	_, err := DecodeBlobList(strings.NewReader("<EnumerationResults><Blobs>"))
	assert.Error(t, err)
}
