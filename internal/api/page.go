package api

// dashboardPage is the single-page operator UI. It only talks to the
// JSON endpoints below it; everything stateful lives server-side.
const dashboardPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<title>Victron Price Scheduler</title>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<style>
body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Arial,sans-serif;margin:24px;max-width:980px}
h1{margin:0 0 8px}
small{color:#666}
.card{border:1px solid #ddd;border-radius:12px;padding:16px;margin:12px 0;box-shadow:0 1px 4px rgba(0,0,0,.04)}
.badge{display:inline-block;padding:2px 8px;border-radius:999px;border:1px solid #ccc;font-size:12px}
.ok{background:#e9f7ef;border-color:#c6e8d4}
.warn{background:#fff4e5;border-color:#ffe0b2}
button{padding:8px 12px;border-radius:8px;border:1px solid #ccc;background:#f8f8f8;cursor:pointer}
button.primary{background:#0b5cff;color:white;border-color:#0b5cff}
table{width:100%;border-collapse:collapse}
th,td{padding:8px;border-bottom:1px solid #eee;text-align:left}
</style>
</head>
<body>
  <h1>Victron Price Scheduler</h1>
  <small>Arduino: <span id="port">-</span></small>

  <div class="card">
    <h3>Current Status</h3>
    <div>Inverter (ON): <span id="on" class="badge">-</span></div>
    <div>Charger (CH): <span id="ch" class="badge">-</span></div>
    <div>Override mode: <span id="override" class="badge">-</span></div>
    <div>Current hour price: <span id="price">-</span> &euro;/kWh</div>
    <div>Schedule hour: <span id="pricets">-</span></div>
    <div style="margin-top:8px">
      <button onclick="setOverride('schedule')" class="primary">Resume Schedule</button>
      <button onclick="setOverride('force_grid')">Force Grid (CH ON)</button>
      <button onclick="reloadPrices()">Reload Today's Prices</button>
    </div>
    <div style="margin-top:8px">
      <button onclick="sendCmd('ON',1)">ON 1</button>
      <button onclick="sendCmd('ON',0)">ON 0</button>
      <button onclick="sendCmd('CH',1)">CH 1</button>
      <button onclick="sendCmd('CH',0)">CH 0</button>
      <button onclick="sendCmd('ALL',1)">ALL 1</button>
      <button onclick="sendCmd('ALL',0)">ALL 0</button>
    </div>
  </div>

  <div class="card">
    <h3>Today's Schedule</h3>
    <table id="sched">
      <thead><tr><th>Hour</th><th>&euro; / kWh</th><th>Action</th></tr></thead>
      <tbody></tbody>
    </table>
  </div>

<script>
async function loadState(){
  const r = await fetch('/api/state'); const j = await r.json();
  document.getElementById('port').textContent = j.arduino_port || '—';
  const on = document.getElementById('on'); on.textContent = j.inverterEnabled ? 'ENABLED' : 'DISABLED';
  on.className = 'badge ' + (j.inverterEnabled ? 'ok' : 'warn');
  const ch = document.getElementById('ch'); ch.textContent = j.chargerEnabled ? 'ENABLED' : 'DISABLED';
  ch.className = 'badge ' + (j.chargerEnabled ? 'ok' : 'warn');
  const ov = document.getElementById('override'); ov.textContent = j.override_mode.toUpperCase();
  ov.className = 'badge ' + (j.override_mode === 'schedule' ? 'ok' : 'warn');
  document.getElementById('price').textContent = (j.current_price ?? '-');
  document.getElementById('pricets').textContent = (j.current_price_time ?? '-');
}

async function loadSchedule(){
  const r = await fetch('/api/schedule'); const j = await r.json();
  const tb = document.querySelector('#sched tbody'); tb.innerHTML = '';
  (j.rows || []).forEach(row=>{
    const tr = document.createElement('tr');
    const td1 = document.createElement('td'); td1.textContent = row.hour_local;
    const td2 = document.createElement('td'); td2.textContent = row.price.toFixed(5);
    const td3 = document.createElement('td'); td3.textContent = row.action;
    tr.appendChild(td1); tr.appendChild(td2); tr.appendChild(td3);
    tb.appendChild(tr);
  });
}

async function setOverride(mode){
  await fetch('/api/override', {method:'POST', headers:{'Content-Type':'application/json'}, body: JSON.stringify({mode})});
  await loadState();
}

async function reloadPrices(){
  await fetch('/api/reload', {method:'POST'});
  await loadSchedule();
}

async function sendCmd(kind, val){
  await fetch('/api/command', {method:'POST', headers:{'Content-Type':'application/json'}, body: JSON.stringify({kind, val})});
  await loadState();
}

loadState(); loadSchedule();
setInterval(()=>{ loadState(); }, 4000);
</script>
</body>
</html>
`
