package web

// pageTemplates holds every page the web surface renders. Small enough that
// an embedded string beats shipping template files next to the binary.
const pageTemplates = `
{{define "form"}}<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Redeem your key</title>
  <style>
    body { font-family: sans-serif; max-width: 28rem; margin: 3rem auto; padding: 0 1rem; }
    label { display: block; margin-top: 1rem; }
    input { width: 100%; padding: .5rem; margin-top: .25rem; box-sizing: border-box; }
    button { margin-top: 1.5rem; padding: .5rem 1.5rem; }
    .errors { color: #b00020; }
  </style>
</head>
<body>
  <h1>Redeem your key</h1>
  {{if .Errors}}
  <ul class="errors">
    {{range .Errors}}<li>{{.}}</li>{{end}}
  </ul>
  {{end}}
  <form method="post" action="/redeem">
    <label>Name
      <input name="name" value="{{.Name}}" maxlength="100" required>
    </label>
    <label>Redeem key
      <input name="key" value="{{.Key}}" maxlength="100" required>
    </label>
    <label>Server invite link
      <input name="invite" value="{{.Invite}}" placeholder="https://discord.gg/..." required>
    </label>
    <input type="hidden" name="order_id" value="{{.OrderID}}">
    <button type="submit">Submit</button>
  </form>
</body>
</html>{{end}}

{{define "status"}}<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Request #{{.ID}}</title>
  <style>
    body { font-family: sans-serif; max-width: 28rem; margin: 3rem auto; padding: 0 1rem; }
    .PENDING { color: #8a6d00; }
    .APPROVED { color: #1b7e3c; }
    .REJECTED { color: #b00020; }
  </style>
</head>
<body>
  <h1>Request #{{.ID}}</h1>
  <p>Hi {{.Name}}, your request is <strong class="{{.Status}}">{{.Status}}</strong>.</p>
  <p>Submitted {{.SubmittedAt}}.</p>
  <p>Questions? Reach us at {{.ContactEmail}}.</p>
</body>
</html>{{end}}

{{define "notfound"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Not found</title></head>
<body style="font-family: sans-serif; max-width: 28rem; margin: 3rem auto;">
  <h1>Not found</h1>
  <p>No redeem request with that id exists.</p>
</body>
</html>{{end}}
`
