package pipeline

// interopEpilogue makes an object or function default export the module's
// export value. Named exports are copied onto it where they do not collide,
// and the default stays reachable under `default`.
const interopEpilogue = `
;(function (m) {
  var e = m.exports;
  if (e === null || typeof e !== "object" || !("default" in e)) return;
  var d = e.default;
  if (d === null || (typeof d !== "object" && typeof d !== "function")) return;
  for (var k in e) {
    if (k === "default" || k === "__esModule" || k in d) continue;
    try { d[k] = e[k]; } catch (_) {}
  }
  if (!("default" in d)) {
    try { Object.defineProperty(d, "default", { value: d, enumerable: false, configurable: true }); } catch (_) {}
  }
  m.exports = d;
})(module);
`

// WithInterop appends the default-export interop epilogue to code.
func WithInterop(code string) string {
	return code + interopEpilogue
}
