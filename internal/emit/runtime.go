package emit

// runtimeJS is the bootstrap embedded in the manifest chunk. It receives the
// manifest object as __RAIDO_MANIFEST__ (spliced in at emit time) and exposes
// window.raido with:
//
//	register(path, imports, contexts, fn) — called by content chunks
//	require(path)                         — synchronous module evaluation
//	load(path)                            — promise returning the exports of
//	                                        a module in an on-demand chunk
//	boot(entry)                           — load an entry's files and run it
//
// Each registered module gets a local require that maps call-site specifiers
// back to resolved module paths via the per-module import map, so sources are
// embedded verbatim, never rewritten. require.load resolves through the
// manifest to the owning chunk file; a chunk is fetched at most once and
// repeated loads of an already-fetched chunk resolve immediately.
const runtimeJS = `
var manifest = __RAIDO_MANIFEST__;
var modules = {};
var cache = {};
var chunkState = {}; // file -> {loaded: bool, waiters: [fn]}

function register(path, imports, contexts, fn) {
  modules[path] = { imports: imports, contexts: contexts, fn: fn };
}

function requireModule(path) {
  var cached = cache[path];
  if (cached) {
    return cached.exports;
  }
  var def = modules[path];
  if (!def) {
    throw new Error('raido: module not registered: ' + path);
  }
  var module = { exports: {} };
  cache[path] = module;
  def.fn(module, module.exports, makeRequire(def));
  return module.exports;
}

function makeRequire(def) {
  var require = function (spec) {
    return requireModule(def.imports[spec] || spec);
  };
  require.load = function (spec) {
    return loadModule(def.imports[spec] || spec);
  };
  require.context = function (dirSpec) {
    var table = def.contexts[dirSpec];
    if (!table) {
      throw new Error('raido: no context registered for: ' + dirSpec);
    }
    var ctx = function (key) {
      if (!table[key]) {
        throw new Error('raido: context key not found: ' + key);
      }
      return requireModule(table[key]);
    };
    ctx.keys = function () { return Object.keys(table); };
    return ctx;
  };
  return require;
}

function fetchChunk(file) {
  var state = chunkState[file];
  if (state && state.loaded) {
    return Promise.resolve();
  }
  if (state) {
    return new Promise(function (resolve, reject) {
      state.waiters.push({ resolve: resolve, reject: reject });
    });
  }
  state = chunkState[file] = { loaded: false, waiters: [] };
  return new Promise(function (resolve, reject) {
    var script = document.createElement('script');
    script.src = file;
    script.type = 'text/javascript';
    script.onload = function () {
      state.loaded = true;
      resolve();
      state.waiters.forEach(function (w) { w.resolve(); });
      state.waiters = [];
    };
    script.onerror = function () {
      // Not cached as loaded: a later retry gets a fresh fetch.
      delete chunkState[file];
      var err = new Error('raido: failed to load chunk: ' + file);
      reject(err);
      state.waiters.forEach(function (w) { w.reject(err); });
    };
    document.getElementsByTagName('head')[0].appendChild(script);
  });
}

function loadModule(path) {
  if (modules[path]) {
    return Promise.resolve().then(function () { return requireModule(path); });
  }
  var file = manifest.modules[path];
  if (!file) {
    return Promise.reject(new Error('raido: unknown module: ' + path));
  }
  return fetchChunk(file).then(function () { return requireModule(path); });
}

function boot(entry) {
  var e = manifest.entries[entry];
  if (!e) {
    return Promise.reject(new Error('raido: unknown entry: ' + entry));
  }
  var p = Promise.resolve();
  e.files.forEach(function (file) {
    p = p.then(function () { return fetchChunk(file); });
  });
  return p.then(function () { return requireModule(e.root); });
}

window.raido = {
  manifest: manifest,
  register: register,
  require: requireModule,
  load: loadModule,
  boot: boot
};
`
