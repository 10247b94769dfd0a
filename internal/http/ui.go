package http

import nethttp "net/http"

// dashboardHandler serves the page shell for every path no other route claims.
func dashboardHandler(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodGet && r.Method != nethttp.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusMethodNotAllowed), nethttp.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(nethttp.StatusOK)
	_, _ = w.Write([]byte(dashboardHTML))
}

func faviconHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	w.WriteHeader(nethttp.StatusNoContent)
}

const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Airflow Monitor</title>
  <style>
    :root {
      --bg: #f7f7f7;
      --paper: #fff;
      --text: #333;
      --muted: #777;
      --line: #ddd;
      --head: #f0f0f0;
      --ok-bg: #d4edda;
      --bad-bg: #f8d7da;
      --run-bg: #fff3cd;
    }

    * { box-sizing: border-box; }

    body {
      margin: 0;
      padding: 20px;
      background: var(--bg);
      color: var(--text);
      font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
      font-size: 14px;
    }

    h1 { font-size: 22px; margin: 0 0 16px; }

    .controls {
      display: flex;
      gap: 12px;
      align-items: center;
      padding: 10px 12px;
      background: var(--head);
      border: 1px solid var(--line);
      border-radius: 4px;
    }
    .controls .muted { color: var(--muted); margin-left: auto; }

    table { border-collapse: collapse; width: 100%; margin-top: 16px; background: var(--paper); }
    th, td { border: 1px solid var(--line); padding: 8px; text-align: left; vertical-align: top; }
    th { background: var(--head); }
    tr.clickable:hover { background: #f5f5f5; cursor: pointer; }
    .state-success { background: var(--ok-bg); }
    .state-failed { background: var(--bad-bg); }
    .state-running, .state-queued { background: var(--run-bg); }
    .detail-row { display: none; background: #fafafa; }
    .detail-row.open { display: table-row; }
    .nested { width: 95%; margin: 8px auto; }
    .nested th { background: #e0e0e0; }

    .modal { display: none; position: fixed; z-index: 10; inset: 0; overflow: auto; background: rgba(0, 0, 0, 0.4); }
    .modal.open { display: block; }
    .modal-content { background: var(--paper); margin: 6% auto; padding: 20px; border: 1px solid #888; width: 80%; }
    .modal-close { float: right; font-size: 26px; font-weight: bold; cursor: pointer; color: #aaa; }
    .modal-close:hover { color: #000; }
    pre {
      white-space: pre-wrap;
      word-wrap: break-word;
      background: #2d2d2d;
      color: #f8f8f2;
      padding: 15px;
      border-radius: 4px;
      max-height: 60vh;
      overflow: auto;
    }
  </style>
</head>
<body>
  <h1>Airflow Status</h1>

  <div class="controls">
    <label>Import dags.csv: <input type="file" id="csvInput" accept=".csv,text/csv" /></label>
    <button type="button" id="refreshBtn">Refresh</button>
    <button type="button" id="clearBtn">Clear list</button>
    <span class="muted" id="rosterInfo"></span>
  </div>

  <table>
    <thead>
      <tr><th>DAG ID</th><th>State</th><th>Execution Date</th></tr>
    </thead>
    <tbody id="dagTableBody"></tbody>
  </table>

  <div id="logModal" class="modal">
    <div class="modal-content">
      <span class="modal-close" id="logClose">&times;</span>
      <h2 id="logTitle">Task log</h2>
      <pre id="logContent"></pre>
    </div>
  </div>

  <script>
    const STORE_KEY = 'airflow_monitor_dags';

    function el(tag, attrs, children) {
      const node = document.createElement(tag);
      Object.entries(attrs || {}).forEach(([k, v]) => {
        if (k === 'class') node.className = v;
        else if (k === 'text') node.textContent = v;
        else node.setAttribute(k, v);
      });
      (children || []).forEach(c => node.appendChild(c));
      return node;
    }

    function stateClass(state) {
      return state ? 'state-' + String(state).toLowerCase() : '';
    }

    async function getJSON(path, params) {
      const qs = new URLSearchParams(params).toString();
      const res = await fetch(path + '?' + qs, { headers: { 'Accept': 'application/json' } });
      if (!res.ok) {
        throw new Error('HTTP ' + res.status);
      }
      return res.json();
    }

    function loadRoster() {
      try {
        return JSON.parse(localStorage.getItem(STORE_KEY) || '[]');
      } catch (e) {
        return [];
      }
    }

    function parseRoster(text) {
      const ids = [];
      text.split(/\r?\n/).forEach(line => {
        const clean = line.trim();
        if (!clean || clean.startsWith('#')) return;
        const first = clean.split(',')[0].trim().replace(/^"|"$/g, '');
        if (first && first !== 'dag_id' && !ids.includes(first)) ids.push(first);
      });
      return ids;
    }

    function importCsv(event) {
      const file = event.target.files[0];
      if (!file) return;
      const reader = new FileReader();
      reader.onload = e => {
        const ids = parseRoster(e.target.result);
        if (ids.length === 0) {
          alert('No valid DAG IDs found in file.');
          return;
        }
        localStorage.setItem(STORE_KEY, JSON.stringify(ids));
        renderRoster();
      };
      reader.readAsText(file);
    }

    function clearRoster() {
      if (confirm('Clear all tracked DAGs?')) {
        localStorage.removeItem(STORE_KEY);
        renderRoster();
      }
    }

    function detailRow(colspan) {
      const content = el('div');
      const row = el('tr', { class: 'detail-row' }, [el('td', { colspan: String(colspan) }, [content])]);
      return { row, content };
    }

    function toggle(detail) {
      detail.row.classList.toggle('open');
      return detail.row.classList.contains('open');
    }

    function renderRoster() {
      const body = document.getElementById('dagTableBody');
      const dags = loadRoster();
      body.innerHTML = '';
      document.getElementById('rosterInfo').textContent = dags.length + ' DAG(s) tracked';

      if (dags.length === 0) {
        body.appendChild(el('tr', {}, [el('td', { colspan: '3', text: 'No DAGs tracked. Import a CSV to start.' })]));
        return;
      }

      dags.forEach(dagId => {
        const stateCell = el('td', { text: 'Loading...' });
        const dateCell = el('td', { text: '-' });
        const row = el('tr', {}, [el('td', { text: dagId }), stateCell, dateCell]);
        const detail = detailRow(3);
        body.appendChild(row);
        body.appendChild(detail.row);
        fetchStatus(dagId, row, stateCell, dateCell, detail);
      });
    }

    async function fetchStatus(dagId, row, stateCell, dateCell, detail) {
      try {
        const data = await getJSON('/api/status', { dag_id: dagId });
        stateCell.textContent = data.state;
        dateCell.textContent = data.execution_date;
        row.className = stateClass(data.state);
        if (data.dag_run_id) {
          row.classList.add('clickable');
          row.onclick = () => { if (toggle(detail)) fetchRuns(dagId, detail.content); };
        }
      } catch (e) {
        stateCell.textContent = 'Error';
      }
    }

    async function fetchRuns(dagId, target) {
      target.textContent = 'Loading runs...';
      try {
        const runs = await getJSON('/api/runs', { dag_id: dagId });
        const body = el('tbody');
        if (runs.length === 0) {
          body.appendChild(el('tr', {}, [el('td', { colspan: '3', text: 'No runs found' })]));
        }
        runs.forEach(run => {
          const detail = detailRow(3);
          const row = el('tr', { class: 'clickable ' + stateClass(run.state) }, [
            el('td', { text: run.dag_run_id }),
            el('td', { text: run.state }),
            el('td', { text: run.execution_date }),
          ]);
          row.onclick = ev => {
            ev.stopPropagation();
            if (toggle(detail)) fetchTasks(dagId, run.dag_run_id, detail.content);
          };
          body.appendChild(row);
          body.appendChild(detail.row);
        });
        target.replaceChildren(el('table', { class: 'nested' }, [
          el('thead', {}, [el('tr', {}, [el('th', { text: 'Run ID' }), el('th', { text: 'State' }), el('th', { text: 'Execution Date' })])]),
          body,
        ]));
      } catch (e) {
        target.textContent = 'Error loading runs: ' + e;
      }
    }

    async function fetchTasks(dagId, dagRunId, target) {
      target.textContent = 'Loading tasks...';
      try {
        const tasks = await getJSON('/api/tasks', { dag_id: dagId, dag_run_id: dagRunId });
        const body = el('tbody');
        if (tasks.length === 0) {
          body.appendChild(el('tr', {}, [el('td', { colspan: '4', text: 'No tasks found' })]));
        }
        tasks.forEach(task => {
          const btn = el('button', { type: 'button', text: 'View log' });
          btn.onclick = ev => {
            ev.stopPropagation();
            fetchLog(dagId, dagRunId, task.task_id, task.try_number);
          };
          body.appendChild(el('tr', { class: stateClass(task.state) }, [
            el('td', { text: task.task_id }),
            el('td', { text: task.state }),
            el('td', { text: String(task.try_number) }),
            el('td', {}, [btn]),
          ]));
        });
        target.replaceChildren(el('table', { class: 'nested' }, [
          el('thead', {}, [el('tr', {}, [el('th', { text: 'Task ID' }), el('th', { text: 'State' }), el('th', { text: 'Try' }), el('th', { text: 'Action' })])]),
          body,
        ]));
      } catch (e) {
        target.textContent = 'Error loading tasks: ' + e;
      }
    }

    async function fetchLog(dagId, dagRunId, taskId, tryNumber) {
      const modal = document.getElementById('logModal');
      const content = document.getElementById('logContent');
      document.getElementById('logTitle').textContent = taskId + ' (try ' + tryNumber + ')';
      modal.classList.add('open');
      content.textContent = 'Loading log...';
      try {
        const data = await getJSON('/api/logs', {
          dag_id: dagId, dag_run_id: dagRunId, task_id: taskId, try_number: tryNumber,
        });
        content.textContent = typeof data.content === 'string'
          ? data.content.replace(/\\n/g, '\n')
          : JSON.stringify(data.content, null, 2);
      } catch (e) {
        content.textContent = 'Error loading log: ' + e;
      }
    }

    document.getElementById('csvInput').addEventListener('change', importCsv);
    document.getElementById('clearBtn').addEventListener('click', clearRoster);
    document.getElementById('refreshBtn').addEventListener('click', renderRoster);
    document.getElementById('logClose').addEventListener('click', () => {
      document.getElementById('logModal').classList.remove('open');
    });
    window.addEventListener('click', ev => {
      const modal = document.getElementById('logModal');
      if (ev.target === modal) modal.classList.remove('open');
    });

    renderRoster();
  </script>
</body>
</html>
`
