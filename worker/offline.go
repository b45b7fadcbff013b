package worker

import "net/http"

// offlineDocument is returned for top-level navigations when the network is
// unreachable and nothing is cached.
const offlineDocument = `<!DOCTYPE html>
<html>
<head>
  <title>Offline</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <style>
    body { font-family: system-ui, sans-serif; text-align: center; padding: 50px; }
    h1 { color: #666; }
  </style>
</head>
<body>
  <h1>You're offline</h1>
  <p>Please check your internet connection and try again.</p>
</body>
</html>`

func offlineResponse() *Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/html")
	return &Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       []byte(offlineDocument),
	}
}
